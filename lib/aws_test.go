package lib

import (
	"context"
	"testing"
)

func TestSessionUseExplicit(t *testing.T) {
	sessLock.Lock()
	saved := sess
	sessLock.Unlock()
	defer func() {
		sessLock.Lock()
		sess = saved
		sessLock.Unlock()
	}()
	err := SessionUseExplicit("AKIDEXAMPLE", "secret", "eu-west-2")
	if err != nil {
		t.Fatal(err)
	}
	if Region() != "eu-west-2" {
		t.Errorf("got region %s", Region())
	}
	creds, err := Session().Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if creds.AccessKeyID != "AKIDEXAMPLE" || creds.SecretAccessKey != "secret" {
		t.Errorf("got %s %s", creds.AccessKeyID, creds.SecretAccessKey)
	}
}

func TestSessionUseExplicitIncomplete(t *testing.T) {
	for _, args := range [][3]string{
		{"", "secret", "eu-west-2"},
		{"AKIDEXAMPLE", "", "eu-west-2"},
		{"AKIDEXAMPLE", "secret", ""},
	} {
		err := SessionUseExplicit(args[0], args[1], args[2])
		if err == nil {
			t.Errorf("expected error for %v", args)
		}
	}
}
