package foodlog

import (
	"fmt"

	"github.com/alexflint/go-arg"
	"github.com/nathants/foodlog/lib"
	"gopkg.in/yaml.v3"
)

func init() {
	lib.Commands["infra-parse"] = infraParse
	lib.Args["infra-parse"] = infraParseArgs{}
}

type infraParseArgs struct {
	YamlPath string `arg:"positional,required"`
}

func (infraParseArgs) Description() string {
	return "\nparse and validate an infra.yaml file\n"
}

func infraParse() {
	var args infraParseArgs
	arg.MustParse(&args)
	infraSet, err := lib.InfraParse(args.YamlPath)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	bytes, err := yaml.Marshal(infraSet)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	fmt.Print(string(bytes))
}
