package foodlog

import (
	"context"

	"github.com/alexflint/go-arg"
	"github.com/nathants/foodlog/lib"
)

func init() {
	lib.Commands["infra-ensure"] = infraEnsure
	lib.Args["infra-ensure"] = infraEnsureArgs{}
}

type infraEnsureArgs struct {
	credsArgs
	YamlPath string `arg:"positional,required"`
	Preview  bool   `arg:"-p,--preview"`
}

func (infraEnsureArgs) Description() string {
	return `
ensure infra: table, per action roles, rest api

example:
 - foodlog infra-ensure infra.yaml --preview
 - foodlog infra-ensure infra.yaml
 - FOODLOG_AWS_ACCESS_KEY_ID=... FOODLOG_AWS_SECRET_ACCESS_KEY=... foodlog infra-ensure infra.yaml --region us-west-2
`
}

func infraEnsure() {
	var args infraEnsureArgs
	arg.MustParse(&args)
	args.use()
	ctx := context.Background()
	err := lib.InfraEnsure(ctx, args.YamlPath, args.Preview)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
}
