package foodlog

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/alexflint/go-arg"
	"github.com/buger/goterm"
	"github.com/mattn/go-isatty"
	"github.com/nathants/foodlog/lib"
)

func init() {
	lib.Commands["entry-ls"] = entryLs
	lib.Args["entry-ls"] = entryLsArgs{}
}

type entryLsArgs struct {
	apiArgs
}

func (entryLsArgs) Description() string {
	return "\nls food log entries with their calories\n"
}

func entryLs() {
	var args entryLsArgs
	arg.MustParse(&args)
	ctx := context.Background()
	resp := check(lib.NewClient(args.ApiUrl).Get(ctx, lib.CollectionPath(args.Table)))
	var entries []*lib.Entry
	for _, item := range resp.Items {
		entry, err := item.Entry(args.Table)
		if err != nil {
			lib.Logger.Fatal("error: ", err)
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	color := isatty.IsTerminal(os.Stdout.Fd())
	for _, entry := range entries {
		calories := lib.FormatNumber(entry.Calories()) + " calories"
		name := lib.Capitalize(entry.Name)
		if color {
			name = goterm.Bold(name)
			calories = goterm.Color(calories, goterm.GREEN)
		}
		fmt.Println(entry.ID, name, calories,
			"carbs="+lib.FormatNumber(entry.Carbs)+"g",
			"protein="+lib.FormatNumber(entry.Protein)+"g",
			"fat="+lib.FormatNumber(entry.Fat)+"g",
		)
	}
}
