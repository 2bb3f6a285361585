package foodlog

import (
	"context"
	"fmt"

	"github.com/alexflint/go-arg"
	"github.com/nathants/foodlog/lib"
	"gopkg.in/yaml.v3"
)

func init() {
	lib.Commands["infra-ls"] = infraLs
	lib.Args["infra-ls"] = infraLsArgs{}
}

type infraLsArgs struct {
	credsArgs
	YamlPath string `arg:"positional" help:"only list the infra set this file defines"`
}

func (infraLsArgs) Description() string {
	return "\nls infra\n"
}

func infraLs() {
	var args infraLsArgs
	arg.MustParse(&args)
	args.use()
	ctx := context.Background()
	filter := ""
	if args.YamlPath != "" {
		infraSet, err := lib.InfraParse(args.YamlPath)
		if err != nil {
			lib.Logger.Fatal("error: ", err)
		}
		filter = infraSet.Name
	}
	infra, err := lib.InfraList(ctx, filter)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	bytes, err := yaml.Marshal(infra)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	fmt.Print(string(bytes))
}
