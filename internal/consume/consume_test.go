package consume

import (
	amqp "github.com/rabbitmq/amqp091-go"
	"testing"
)

func TestDeliveryCountDefaultsToZero(t *testing.T) {
	d := amqp.Delivery{}
	if got := deliveryCount(d); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
}

func TestDeliveryCountReadsHeader(t *testing.T) {
	cases := []struct {
		name string
		val  any
		want int32
	}{
		{"int32", int32(2), 2},
		{"int64", int64(3), 3},
		{"int16", int16(1), 1},
		{"int", 5, 5},
	}
	for _, c := range cases {
		d := amqp.Delivery{Headers: amqp.Table{deliveryCountHeader: c.val}}
		if got := deliveryCount(d); got != c.want {
			t.Fatalf("%s: got %d want %d", c.name, got, c.want)
		}
	}
}
