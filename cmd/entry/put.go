package foodlog

import (
	"context"

	"github.com/alexflint/go-arg"
	"github.com/nathants/foodlog/lib"
)

func init() {
	lib.Commands["entry-put"] = entryPut
	lib.Args["entry-put"] = entryPutArgs{}
}

type entryPutArgs struct {
	apiArgs
	ID      string `arg:"positional,required"`
	Name    string `arg:"positional,required"`
	Carbs   string `arg:"positional,required"`
	Protein string `arg:"positional,required"`
	Fat     string `arg:"positional,required"`
}

func (entryPutArgs) Description() string {
	return "\nreplace a food log entry by id\n"
}

func entryPut() {
	var args entryPutArgs
	arg.MustParse(&args)
	ctx := context.Background()
	req := &lib.EntryRequest{Fields: entryFields(args.Name, args.Carbs, args.Protein, args.Fat)}
	check(lib.NewClient(args.ApiUrl).Put(ctx, lib.CollectionPath(args.Table)+"/"+args.ID, req))
}
