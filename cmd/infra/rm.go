package foodlog

import (
	"context"

	"github.com/alexflint/go-arg"
	"github.com/nathants/foodlog/lib"
)

func init() {
	lib.Commands["infra-rm"] = infraRm
	lib.Args["infra-rm"] = infraRmArgs{}
}

type infraRmArgs struct {
	credsArgs
	YamlPath string `arg:"positional,required"`
	Preview  bool   `arg:"-p,--preview"`
}

func (infraRmArgs) Description() string {
	return "\nrm infra, including the table and its data\n"
}

func infraRm() {
	var args infraRmArgs
	arg.MustParse(&args)
	args.use()
	ctx := context.Background()
	err := lib.InfraRm(ctx, args.YamlPath, args.Preview)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
}
