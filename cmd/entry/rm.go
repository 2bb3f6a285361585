package foodlog

import (
	"context"

	"github.com/alexflint/go-arg"
	"github.com/nathants/foodlog/lib"
)

func init() {
	lib.Commands["entry-rm"] = entryRm
	lib.Args["entry-rm"] = entryRmArgs{}
}

type entryRmArgs struct {
	apiArgs
	ID string `arg:"positional,required"`
}

func (entryRmArgs) Description() string {
	return "\nrm a food log entry by id\n"
}

func entryRm() {
	var args entryRmArgs
	arg.MustParse(&args)
	ctx := context.Background()
	check(lib.NewClient(args.ApiUrl).Delete(ctx, lib.CollectionPath(args.Table)+"/"+args.ID, nil))
}
