package foodlog

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/alexflint/go-arg"
	"github.com/nathants/foodlog/lib"
)

func init() {
	lib.Commands["serve"] = serve
	lib.Args["serve"] = serveArgs{}
}

type serveArgs struct {
	Port   string `arg:"-P,--port,env:PORT" default:"3000"`
	ApiUrl string `arg:"-u,--api-url,env:FOODLOG_API_URL,required" help:"base url of the rest api, see infra-url-api"`
	Table  string `arg:"-t,--table" default:"FoodLogTable"`
}

func (serveArgs) Description() string {
	return "\nserve the food log page and its static assets\n"
}

func serve() {
	var args serveArgs
	arg.MustParse(&args)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()
	handler := lib.NewWebServer(lib.NewClient(args.ApiUrl), args.Table)
	err := lib.ListenAndServe(ctx, ":"+args.Port, handler)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
}
