package lib

import (
	"context"
	"errors"
	"reflect"
	"testing"
)

func TestSplitTwice(t *testing.T) {
	a, b, c, err := SplitTwice("FoodLogTableId:s:hash", ":")
	if err != nil || a != "FoodLogTableId" || b != "s" || c != "hash" {
		t.Errorf("got %s %s %s %v", a, b, c, err)
	}
	_, _, _, err = SplitTwice("FoodLogTableId:s", ":")
	if err == nil {
		t.Errorf("expected error")
	}
}

func TestSplitWhiteSpaceN(t *testing.T) {
	got := SplitWhiteSpaceN("  dynamodb:Scan   arn:aws:dynamodb:us-east-1:1:table/FoodLogTable ", 2)
	want := []string{"dynamodb:Scan", "arn:aws:dynamodb:us-east-1:1:table/FoodLogTable"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("\ngot:\n%v\nwant:\n%v\n", got, want)
	}
}

func TestLast(t *testing.T) {
	if Last(nil) != "" || Last([]string{"a", "b"}) != "b" {
		t.Errorf("bad last")
	}
}

func TestPreviewString(t *testing.T) {
	if PreviewString(true) != "preview: " || PreviewString(false) != "" {
		t.Errorf("bad preview string")
	}
}

func TestRetry(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), func() error {
		attempts++
		if attempts < 3 {
			return errors.New("role not yet assumable")
		}
		return nil
	})
	if err != nil || attempts != 3 {
		t.Errorf("got %d %v", attempts, err)
	}
}

func TestRetryGivesUp(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempts := 0
	err := Retry(ctx, func() error {
		attempts++
		return errors.New("always")
	})
	if err == nil || attempts > 1 {
		t.Errorf("got %d %v", attempts, err)
	}
}
