package foodlog

import (
	"fmt"

	"github.com/alexflint/go-arg"
	"github.com/nathants/foodlog/lib"
)

func init() {
	lib.Commands["calories"] = calories
	lib.Args["calories"] = caloriesArgs{}
}

type caloriesArgs struct {
	Carbs   string `arg:"positional,required"`
	Protein string `arg:"positional,required"`
	Fat     string `arg:"positional,required"`
}

func (caloriesArgs) Description() string {
	return "\ncalories from grams of carbs, protein and fat\n"
}

func calories() {
	var args caloriesArgs
	arg.MustParse(&args)
	var grams []float64
	for _, s := range []string{args.Carbs, args.Protein, args.Fat} {
		g, err := lib.ParseGrams(s)
		if err != nil {
			lib.Logger.Fatal("error: ", err)
		}
		grams = append(grams, g)
	}
	fmt.Println(lib.FormatNumber(lib.CalculateCalories(grams[0], grams[1], grams[2])))
}
