// Package amqpconn establishes the broker connection and confirm-mode
// channel shared by the publisher and the queue consumers.
package amqpconn

import (
	"crypto/tls"
	"fmt"
	"net/url"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Prefetch is the per-consumer QoS cap on unacknowledged deliveries.
const Prefetch = 2

const (
	maxDialAttempts = 10
	initialBackoff  = time.Second
)

// Dial connects to addr, retrying with exponential backoff (1s doubling, up
// to 10 attempts). It opens a single channel in publisher-confirm mode with
// QoS prefetch applied.
//
// If addr's host is "localhost" the connection is plaintext; for any other
// host it is TLS, accepting invalid certificates (self-signed broker
// deployments are common in private network topologies).
func Dial(addr string) (*amqp.Connection, *amqp.Channel, error) {
	var lastErr error
	backoff := initialBackoff

	for attempt := 0; attempt < maxDialAttempts; attempt++ {
		conn, err := dialOnce(addr)
		if err == nil {
			ch, chErr := openConfirmChannel(conn)
			if chErr == nil {
				return conn, ch, nil
			}
			conn.Close()
			lastErr = chErr
		} else {
			lastErr = err
		}

		if attempt == maxDialAttempts-1 {
			break
		}
		time.Sleep(backoff)
		backoff *= 2
	}

	return nil, nil, fmt.Errorf("amqpconn: failed to connect to %s after %d attempts: %w", maskAddr(addr), maxDialAttempts, lastErr)
}

func dialOnce(addr string) (*amqp.Connection, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("amqpconn: parse broker url: %w", err)
	}

	host := u.Hostname()
	if host == "localhost" {
		conn, err := amqp.Dial(addr)
		if err != nil {
			return nil, fmt.Errorf("amqpconn: dial: %w", err)
		}
		return conn, nil
	}

	conn, err := amqp.DialTLS(addr, &tls.Config{InsecureSkipVerify: true})
	if err != nil {
		return nil, fmt.Errorf("amqpconn: dial tls: %w", err)
	}
	return conn, nil
}

// OpenChannel opens a fresh confirm-mode channel on an existing connection,
// re-applying QoS. Used by the publisher to re-establish its channel after a
// publish failure without redialing the whole connection.
func OpenChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	return openConfirmChannel(conn)
}

func openConfirmChannel(conn *amqp.Connection) (*amqp.Channel, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("amqpconn: open channel: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("amqpconn: enable confirm mode: %w", err)
	}
	if err := ch.Qos(Prefetch, 0, false); err != nil {
		ch.Close()
		return nil, fmt.Errorf("amqpconn: set qos: %w", err)
	}
	return ch, nil
}

func maskAddr(addr string) string {
	u, err := url.Parse(addr)
	if err != nil || u.User == nil {
		return addr
	}
	user := u.User.Username()
	if user == "" {
		user = "user"
	}
	u.User = url.UserPassword(user, "****")
	return u.String()
}
