package amqpconn

import (
	"regexp"
	"testing"
)

var tagPattern = regexp.MustCompile(`^[a-z0-9-]+-\d{14}-[a-zA-Z0-9]{16}$`)

func TestGenerateConsumerTagFormat(t *testing.T) {
	tag := GenerateConsumerTag("lr-ord")
	if !tagPattern.MatchString(tag) {
		t.Fatalf("tag %q does not match expected pattern", tag)
	}
}

func TestGenerateConsumerTagUnique(t *testing.T) {
	a := GenerateConsumerTag("lr-ord")
	b := GenerateConsumerTag("lr-ord")
	if a == b {
		t.Fatal("expected distinct consumer tags")
	}
}
