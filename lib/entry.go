package lib

import (
	"fmt"
	"math"
	"sort"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	DefaultTable = "FoodLogTable"

	attrName    = "Name"
	attrCarbs   = "Carbs"
	attrProtein = "Protein"
	attrFat     = "Fat"
)

// KeyName is the partition key attribute of a food log table.
func KeyName(table string) string {
	return table + "Id"
}

// Attr is one value of the store's typed-value envelope, {"S": "toast"} or
// {"N": "20"}. Numbers travel as strings.
type Attr struct {
	S *string `json:"S,omitempty"`
	N *string `json:"N,omitempty"`
}

func AttrS(s string) Attr {
	return Attr{S: &s}
}

func AttrN(n string) Attr {
	return Attr{N: &n}
}

func (a Attr) String() string {
	switch {
	case a.S != nil:
		return *a.S
	case a.N != nil:
		return *a.N
	default:
		return ""
	}
}

type Item map[string]Attr

func (i Item) Keys() []string {
	var keys []string
	for k := range i {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (i Item) AttributeValues() (map[string]ddbtypes.AttributeValue, error) {
	avs := make(map[string]ddbtypes.AttributeValue, len(i))
	for _, name := range i.Keys() {
		attr := i[name]
		switch {
		case attr.S != nil && attr.N != nil:
			return nil, fmt.Errorf("attr has both S and N: %s", name)
		case attr.S != nil:
			avs[name] = &ddbtypes.AttributeValueMemberS{Value: *attr.S}
		case attr.N != nil:
			avs[name] = &ddbtypes.AttributeValueMemberN{Value: *attr.N}
		default:
			return nil, fmt.Errorf("attr has no value: %s", name)
		}
	}
	return avs, nil
}

// ItemFromAttributeValues keeps the S and N attributes, the only types a food
// log item holds.
func ItemFromAttributeValues(avs map[string]ddbtypes.AttributeValue) Item {
	item := make(Item, len(avs))
	for name, av := range avs {
		switch v := av.(type) {
		case *ddbtypes.AttributeValueMemberS:
			item[name] = AttrS(v.Value)
		case *ddbtypes.AttributeValueMemberN:
			item[name] = AttrN(v.Value)
		}
	}
	return item
}

func (i Item) Entry(table string) (*Entry, error) {
	avs, err := i.AttributeValues()
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	return EntryFromAttributeValues(table, avs)
}

type Entry struct {
	ID      string  `dynamodbav:"-"       json:"id"`
	Name    string  `dynamodbav:"Name"    json:"name"`
	Carbs   float64 `dynamodbav:"Carbs"   json:"carbs"`
	Protein float64 `dynamodbav:"Protein" json:"protein"`
	Fat     float64 `dynamodbav:"Fat"     json:"fat"`
}

func (e *Entry) Calories() float64 {
	return CalculateCalories(e.Carbs, e.Protein, e.Fat)
}

func (e *Entry) AttributeValues(table string) (map[string]ddbtypes.AttributeValue, error) {
	avs, err := attributevalue.MarshalMap(e)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	if e.ID != "" {
		avs[KeyName(table)] = &ddbtypes.AttributeValueMemberS{Value: e.ID}
	}
	return avs, nil
}

// Item renders the entry in the typed envelope. The id is included only once
// assigned.
func (e *Entry) Item(table string) (Item, error) {
	avs, err := e.AttributeValues(table)
	if err != nil {
		return nil, err
	}
	return ItemFromAttributeValues(avs), nil
}

func EntryFromAttributeValues(table string, avs map[string]ddbtypes.AttributeValue) (*Entry, error) {
	entry := &Entry{}
	err := attributevalue.UnmarshalMap(avs, entry)
	if err != nil {
		Logger.Println("error:", err)
		return nil, err
	}
	id, ok := avs[KeyName(table)].(*ddbtypes.AttributeValueMemberS)
	if ok {
		entry.ID = id.Value
	}
	for _, grams := range []float64{entry.Carbs, entry.Protein, entry.Fat} {
		if math.IsNaN(grams) || math.IsInf(grams, 0) {
			err := fmt.Errorf("entry has non finite grams: %s", entry.ID)
			Logger.Println("error:", err)
			return nil, err
		}
	}
	return entry, nil
}

// NewEntryFields builds the create/update request fields from form values,
// passing the values through unchanged.
func NewEntryFields(name, carbs, protein, fat string) Item {
	return Item{
		attrName:    AttrS(name),
		attrCarbs:   AttrN(carbs),
		attrProtein: AttrN(protein),
		attrFat:     AttrN(fat),
	}
}

// EntryRequest is the body of create and update requests.
type EntryRequest struct {
	Fields Item `json:"fields"`
}
