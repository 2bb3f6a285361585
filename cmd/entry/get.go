package foodlog

import (
	"context"
	"fmt"
	"os"

	"github.com/alexflint/go-arg"
	"github.com/nathants/foodlog/lib"
)

func init() {
	lib.Commands["entry-get"] = entryGet
	lib.Args["entry-get"] = entryGetArgs{}
}

type entryGetArgs struct {
	apiArgs
	ID string `arg:"positional,required"`
}

func (entryGetArgs) Description() string {
	return "\nget a food log entry by id\n"
}

func entryGet() {
	var args entryGetArgs
	arg.MustParse(&args)
	ctx := context.Background()
	resp := check(lib.NewClient(args.ApiUrl).Get(ctx, lib.CollectionPath(args.Table)+"/"+args.ID))
	if len(resp.Item) == 0 {
		lib.Logger.Println("not found:", args.ID)
		os.Exit(1)
	}
	entry, err := resp.Item.Entry(args.Table)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
	fmt.Println(lib.Pformat(entry))
}
