package foodlog

import (
	"context"
	"fmt"

	"github.com/alexflint/go-arg"
	"github.com/nathants/foodlog/lib"
)

func init() {
	lib.Commands["entry-add"] = entryAdd
	lib.Args["entry-add"] = entryAddArgs{}
}

type entryAddArgs struct {
	apiArgs
	Name    string `arg:"positional,required"`
	Carbs   string `arg:"positional,required"`
	Protein string `arg:"positional,required"`
	Fat     string `arg:"positional,required"`
}

func (entryAddArgs) Description() string {
	return `
add a food log entry, printing its id

example:
 - foodlog entry-add toast 20 5 2
`
}

func entryAdd() {
	var args entryAddArgs
	arg.MustParse(&args)
	ctx := context.Background()
	req := &lib.EntryRequest{Fields: entryFields(args.Name, args.Carbs, args.Protein, args.Fat)}
	resp := check(lib.NewClient(args.ApiUrl).Post(ctx, lib.CollectionPath(args.Table), req))
	fmt.Println(resp.RequestID)
}
