package foodlog

import (
	"github.com/nathants/foodlog/lib"
)

type apiArgs struct {
	ApiUrl string `arg:"-u,--api-url,env:FOODLOG_API_URL,required"`
	Table  string `arg:"-t,--table" default:"FoodLogTable"`
}

// check exits on a missing or failed response.
func check(resp *lib.Response) *lib.Response {
	if resp == nil {
		lib.Logger.Fatal("error: no response")
	}
	if resp.Error != "" {
		lib.Logger.Fatal("error: ", resp.StatusCode, " ", resp.Error)
	}
	return resp
}

func entryFields(name, carbs, protein, fat string) lib.Item {
	var grams []string
	for _, s := range []string{carbs, protein, fat} {
		g, err := lib.ParseGrams(s)
		if err != nil {
			lib.Logger.Fatal("error: ", err)
		}
		grams = append(grams, lib.FormatNumber(g))
	}
	return lib.NewEntryFields(name, grams[0], grams[1], grams[2])
}
