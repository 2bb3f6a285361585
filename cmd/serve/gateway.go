package foodlog

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/nathants/foodlog/lib"
)

func init() {
	lib.Commands["gateway"] = gateway
	lib.Args["gateway"] = gatewayArgs{}
}

type gatewayArgs struct {
	Addr  string `arg:"-a,--addr" default:":3001"`
	Table string `arg:"-t,--table" default:"FoodLogTable"`
}

func (gatewayArgs) Description() string {
	return `
serve the rest api locally, calling dynamodb directly

set FOODLOG_DYNAMODB_ENDPOINT to use dynamodb local

example:
 - FOODLOG_DYNAMODB_ENDPOINT=http://localhost:8000 foodlog gateway
 - FOODLOG_API_URL=http://localhost:3001 foodlog serve
`
}

func gateway() {
	var args gatewayArgs
	arg.MustParse(&args)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	for _, route := range lib.Routes(args.Table) {
		lib.Logger.Println("route:", route)
	}
	err := lib.ListenAndServe(ctx, args.Addr, lib.NewGateway(args.Table, lib.DynamoDBClient()))
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
}
