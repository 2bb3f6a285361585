package foodlog

import (
	"github.com/nathants/foodlog/lib"
)

// credsArgs select static credentials over the default chain, for
// provisioning into an account other than the current profile's.
type credsArgs struct {
	AccessKey string `arg:"--access-key,env:FOODLOG_AWS_ACCESS_KEY_ID" help:"static aws access key id"`
	SecretKey string `arg:"--secret-key,env:FOODLOG_AWS_SECRET_ACCESS_KEY" help:"static aws secret access key"`
	Region    string `arg:"--region,env:FOODLOG_AWS_REGION" help:"region for static credentials"`
}

func (c credsArgs) use() {
	if c.AccessKey == "" && c.SecretKey == "" {
		return
	}
	err := lib.SessionUseExplicit(c.AccessKey, c.SecretKey, c.Region)
	if err != nil {
		lib.Logger.Fatal("error: ", err)
	}
}
