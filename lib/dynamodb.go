package lib

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoDBAPI is the subset of the client the gateway drives.
type DynamoDBAPI interface {
	Scan(ctx context.Context, input *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	PutItem(ctx context.Context, input *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, input *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, input *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

var dynamoDBClient *dynamodb.Client
var dynamoDBClientLock sync.Mutex

// DynamoDBClient honors FOODLOG_DYNAMODB_ENDPOINT, for DynamoDB Local.
func DynamoDBClient() *dynamodb.Client {
	dynamoDBClientLock.Lock()
	defer dynamoDBClientLock.Unlock()
	if dynamoDBClient == nil {
		dynamoDBClient = dynamodb.NewFromConfig(*Session(), func(o *dynamodb.Options) {
			endpoint := os.Getenv("FOODLOG_DYNAMODB_ENDPOINT")
			if endpoint != "" {
				o.BaseEndpoint = aws.String(endpoint)
			}
		})
	}
	return dynamoDBClient
}

func dynamoDBTableAttrShortcut(s string) string {
	s2, ok := map[string]string{
		"read":  "ProvisionedThroughput.ReadCapacityUnits",
		"write": "ProvisionedThroughput.WriteCapacityUnits",
	}[s]
	if ok {
		return s2
	}
	return s
}

func DynamoDBEnsureInput(infraSetName, tableName string, keys []string, attrs []string) (*dynamodb.CreateTableInput, error) {
	input := &dynamodb.CreateTableInput{
		TableName:   aws.String(tableName),
		BillingMode: ddbtypes.BillingModePayPerRequest,
	}
	if infraSetName != "" {
		input.Tags = []ddbtypes.Tag{{
			Key:   aws.String(infraSetTagName),
			Value: aws.String(infraSetName),
		}}
	}
	if len(keys) == 0 {
		err := fmt.Errorf("table needs at least one key: %s", tableName)
		Logger.Println("error:", err)
		return nil, err
	}

	// unpack keys like "FoodLogTableId:s:hash"
	for _, key := range keys {
		attrName, attrType, keyType, err := SplitTwice(key, ":")
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		attrType = strings.ToUpper(attrType)
		keyType = strings.ToUpper(keyType)
		if !Contains([]string{"S", "N", "B"}, attrType) {
			err := fmt.Errorf("unknown attr type: %s", key)
			Logger.Println("error:", err)
			return nil, err
		}
		if !Contains([]string{"HASH", "RANGE"}, keyType) {
			err := fmt.Errorf("unknown key type: %s", key)
			Logger.Println("error:", err)
			return nil, err
		}
		input.KeySchema = append(input.KeySchema, ddbtypes.KeySchemaElement{
			AttributeName: aws.String(attrName),
			KeyType:       ddbtypes.KeyType(keyType),
		})
		input.AttributeDefinitions = append(input.AttributeDefinitions, ddbtypes.AttributeDefinition{
			AttributeName: aws.String(attrName),
			AttributeType: ddbtypes.ScalarAttributeType(attrType),
		})
	}

	for _, line := range attrs {
		attr, value, err := SplitOnce(line, "=")
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		attr = dynamoDBTableAttrShortcut(attr)
		head, tail, err := SplitOnce(attr, ".")
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		switch head {
		case "ProvisionedThroughput":
			units, err := strconv.Atoi(value)
			if err != nil {
				Logger.Println("error:", err)
				return nil, err
			}
			input.BillingMode = ddbtypes.BillingModeProvisioned
			if input.ProvisionedThroughput == nil {
				input.ProvisionedThroughput = &ddbtypes.ProvisionedThroughput{}
			}
			switch tail {
			case "ReadCapacityUnits":
				input.ProvisionedThroughput.ReadCapacityUnits = aws.Int64(int64(units))
			case "WriteCapacityUnits":
				input.ProvisionedThroughput.WriteCapacityUnits = aws.Int64(int64(units))
			default:
				err := fmt.Errorf("unknown attr: %s", line)
				Logger.Println("error:", err)
				return nil, err
			}
		default:
			err := fmt.Errorf("unknown attr: %s", line)
			Logger.Println("error:", err)
			return nil, err
		}
	}

	if input.BillingMode == ddbtypes.BillingModeProvisioned {
		if input.ProvisionedThroughput.ReadCapacityUnits == nil || input.ProvisionedThroughput.WriteCapacityUnits == nil {
			err := fmt.Errorf("provisioned tables need both read and write: %s", tableName)
			Logger.Println("error:", err)
			return nil, err
		}
	}

	return input, nil
}

func DynamoDBDescribe(ctx context.Context, tableName string) (*ddbtypes.TableDescription, error) {
	out, err := DynamoDBClient().DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return nil, err
	}
	return out.Table, nil
}

func dynamoDBNotFound(err error) bool {
	var rnf *ddbtypes.ResourceNotFoundException
	return errors.As(err, &rnf)
}

func DynamoDBEnsure(ctx context.Context, input *dynamodb.CreateTableInput, preview bool) error {
	if doDebug {
		d := &Debug{start: time.Now(), name: "DynamoDBEnsure"}
		d.Start()
		defer d.End()
	}
	table, err := DynamoDBDescribe(ctx, *input.TableName)
	if err != nil {
		if !dynamoDBNotFound(err) {
			Logger.Println("error:", err)
			return err
		}
		if !preview {
			_, err := DynamoDBClient().CreateTable(ctx, input)
			if err != nil {
				Logger.Println("error:", err)
				return err
			}
			err = dynamodb.NewTableExistsWaiter(DynamoDBClient()).Wait(ctx, &dynamodb.DescribeTableInput{
				TableName: input.TableName,
			}, 5*time.Minute)
			if err != nil {
				Logger.Println("error:", err)
				return err
			}
		}
		Logger.Println(PreviewString(preview)+"created table:", *input.TableName)
		return nil
	}
	if !reflect.DeepEqual(dynamoDBKeys(table.KeySchema, table.AttributeDefinitions), dynamoDBKeys(input.KeySchema, input.AttributeDefinitions)) {
		err := fmt.Errorf("table keys cannot be changed: %s %v != %v",
			*input.TableName,
			dynamoDBKeys(table.KeySchema, table.AttributeDefinitions),
			dynamoDBKeys(input.KeySchema, input.AttributeDefinitions),
		)
		Logger.Println("error:", err)
		return err
	}
	billingMode := ddbtypes.BillingModeProvisioned
	if table.BillingModeSummary != nil {
		billingMode = table.BillingModeSummary.BillingMode
	}
	if billingMode != input.BillingMode {
		if !preview {
			_, err := DynamoDBClient().UpdateTable(ctx, &dynamodb.UpdateTableInput{
				TableName:             input.TableName,
				BillingMode:           input.BillingMode,
				ProvisionedThroughput: input.ProvisionedThroughput,
			})
			if err != nil {
				Logger.Println("error:", err)
				return err
			}
		}
		Logger.Println(PreviewString(preview)+"updated table billing mode:", *input.TableName, billingMode, "=>", input.BillingMode)
	}
	return nil
}

// dynamoDBKeys renders a key schema in the "name:type:keytype" form used by
// infra files.
func dynamoDBKeys(schema []ddbtypes.KeySchemaElement, defs []ddbtypes.AttributeDefinition) []string {
	attrTypes := make(map[string]string)
	for _, def := range defs {
		attrTypes[*def.AttributeName] = string(def.AttributeType)
	}
	var keys []string
	for _, key := range schema {
		keys = append(keys, fmt.Sprintf("%s:%s:%s", *key.AttributeName, strings.ToLower(attrTypes[*key.AttributeName]), strings.ToLower(string(key.KeyType))))
	}
	return keys
}

func DynamoDBDeleteTable(ctx context.Context, tableName string, preview bool) error {
	if doDebug {
		d := &Debug{start: time.Now(), name: "DynamoDBDeleteTable"}
		d.Start()
		defer d.End()
	}
	_, err := DynamoDBDescribe(ctx, tableName)
	if err != nil {
		if dynamoDBNotFound(err) {
			return nil
		}
		Logger.Println("error:", err)
		return err
	}
	if !preview {
		_, err := DynamoDBClient().DeleteTable(ctx, &dynamodb.DeleteTableInput{
			TableName: aws.String(tableName),
		})
		if err != nil {
			Logger.Println("error:", err)
			return err
		}
	}
	Logger.Println(PreviewString(preview)+"deleted table:", tableName)
	return nil
}

func DynamoDBListTags(ctx context.Context, tableArn string) ([]ddbtypes.Tag, error) {
	var token *string
	var tags []ddbtypes.Tag
	for {
		out, err := DynamoDBClient().ListTagsOfResource(ctx, &dynamodb.ListTagsOfResourceInput{
			ResourceArn: aws.String(tableArn),
			NextToken:   token,
		})
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		tags = append(tags, out.Tags...)
		if out.NextToken == nil {
			break
		}
		token = out.NextToken
	}
	return tags, nil
}

func DynamoDBListTables(ctx context.Context) ([]string, error) {
	if doDebug {
		d := &Debug{start: time.Now(), name: "DynamoDBListTables"}
		d.Start()
		defer d.End()
	}
	var start *string
	var tableNames []string
	for {
		out, err := DynamoDBClient().ListTables(ctx, &dynamodb.ListTablesInput{
			ExclusiveStartTableName: start,
		})
		if err != nil {
			Logger.Println("error:", err)
			return nil, err
		}
		tableNames = append(tableNames, out.TableNames...)
		if out.LastEvaluatedTableName == nil {
			break
		}
		start = out.LastEvaluatedTableName
	}
	return tableNames, nil
}

func DynamoDBTableArn(ctx context.Context, tableName string) (string, error) {
	account, err := StsAccount(ctx)
	if err != nil {
		Logger.Println("error:", err)
		return "", err
	}
	return fmt.Sprintf("arn:aws:dynamodb:%s:%s:table/%s", Region(), account, tableName), nil
}
