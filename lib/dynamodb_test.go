package lib

import (
	"reflect"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestSplitOnce(t *testing.T) {
	type test struct {
		input string
		head  string
		tail  string
		err   bool
	}
	tests := []test{
		{"a", "", "", true},
		{"a.b", "a", "b", false},
		{"a.b.c", "a", "b.c", false},
	}
	for _, test := range tests {
		head, tail, err := SplitOnce(test.input, ".")
		if test.err {
			if err == nil {
				t.Errorf("\nexpected error")
				return
			}
			continue
		}
		if head != test.head {
			t.Errorf("\ngot:\n%s\nwant:\n%s\n", head, test.head)
			return
		}
		if tail != test.tail {
			t.Errorf("\ngot:\n%s\nwant:\n%s\n", tail, test.tail)
			return
		}
	}
}

func TestDynamoDBEnsureInput(t *testing.T) {
	type test struct {
		name  string
		keys  []string
		attrs []string
		input *dynamodb.CreateTableInput
		err   bool
	}
	tests := []test{

		{
			"FoodLogTable",
			[]string{"FoodLogTableId:s:hash"},
			[]string{},
			&dynamodb.CreateTableInput{
				TableName:   aws.String("FoodLogTable"),
				BillingMode: ddbtypes.BillingModePayPerRequest,
				Tags:        []ddbtypes.Tag{{Key: aws.String(infraSetTagName), Value: aws.String("foodlog")}},
				AttributeDefinitions: []ddbtypes.AttributeDefinition{
					{AttributeName: aws.String("FoodLogTableId"), AttributeType: ddbtypes.ScalarAttributeTypeS},
				},
				KeySchema: []ddbtypes.KeySchemaElement{
					{AttributeName: aws.String("FoodLogTableId"), KeyType: ddbtypes.KeyTypeHash},
				},
			},
			false,
		},

		{
			"table",
			[]string{
				"userid:s:hash",
				"date:n:range",
			},
			[]string{
				"read=10",
				"write=5",
			},
			&dynamodb.CreateTableInput{
				TableName:   aws.String("table"),
				BillingMode: ddbtypes.BillingModeProvisioned,
				Tags:        []ddbtypes.Tag{{Key: aws.String(infraSetTagName), Value: aws.String("foodlog")}},
				ProvisionedThroughput: &ddbtypes.ProvisionedThroughput{
					ReadCapacityUnits:  aws.Int64(10),
					WriteCapacityUnits: aws.Int64(5),
				},
				AttributeDefinitions: []ddbtypes.AttributeDefinition{
					{AttributeName: aws.String("userid"), AttributeType: ddbtypes.ScalarAttributeTypeS},
					{AttributeName: aws.String("date"), AttributeType: ddbtypes.ScalarAttributeTypeN},
				},
				KeySchema: []ddbtypes.KeySchemaElement{
					{AttributeName: aws.String("userid"), KeyType: ddbtypes.KeyTypeHash},
					{AttributeName: aws.String("date"), KeyType: ddbtypes.KeyTypeRange},
				},
			},
			false,
		},

		{"table", []string{}, []string{}, nil, true},
		{"table", []string{"id:x:hash"}, []string{}, nil, true},
		{"table", []string{"id:s:sort"}, []string{}, nil, true},
		{"table", []string{"id:s"}, []string{}, nil, true},
		{"table", []string{"id:s:hash"}, []string{"read=10"}, nil, true},
		{"table", []string{"id:s:hash"}, []string{"read=ten", "write=10"}, nil, true},
		{"table", []string{"id:s:hash"}, []string{"stream=keys_only"}, nil, true},
	}
	for _, test := range tests {
		input, err := DynamoDBEnsureInput("foodlog", test.name, test.keys, test.attrs)
		if test.err {
			if err == nil {
				t.Errorf("expected error: %v %v", test.keys, test.attrs)
			}
			continue
		}
		if err != nil {
			t.Errorf("%v %v: %s", test.keys, test.attrs, err)
			continue
		}
		if !reflect.DeepEqual(input, test.input) {
			t.Errorf("\ngot:\n%s\nwant:\n%s\n", Pformat(input), Pformat(test.input))
		}
	}
}

func TestDynamoDBKeys(t *testing.T) {
	input, err := DynamoDBEnsureInput("", "FoodLogTable", []string{"FoodLogTableId:S:HASH"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	keys := dynamoDBKeys(input.KeySchema, input.AttributeDefinitions)
	want := []string{"FoodLogTableId:s:hash"}
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("\ngot:\n%v\nwant:\n%v\n", keys, want)
	}
	if input.Tags != nil {
		t.Errorf("no infraset should mean no tags")
	}
}
