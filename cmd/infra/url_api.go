package foodlog

import (
	"context"
	"fmt"

	"github.com/alexflint/go-arg"
	"github.com/nathants/foodlog/lib"
)

func init() {
	lib.Commands["infra-url-api"] = infraUrlApi
	lib.Args["infra-url-api"] = infraUrlApiArgs{}
}

type infraUrlApiArgs struct {
	credsArgs
	YamlPath string `arg:"positional,required"`
	ApiName  string `arg:"positional,required"`
}

func (infraUrlApiArgs) Description() string {
	return `
get infra api url

example:
 - export FOODLOG_API_URL=$(foodlog infra-url-api infra.yaml "FoodLogTable Service")
`
}

func infraUrlApi() {
	var args infraUrlApiArgs
	arg.MustParse(&args)
	args.use()
	ctx := context.Background()
	url, err := lib.InfraUrlApi(ctx, args.YamlPath, args.ApiName)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	fmt.Println(url)
}
