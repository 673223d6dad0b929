package mqttcm

// "mqtt connection manager"

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"

	"go.ntppool.org/common/logger"
	"go.ntppool.org/common/version"
)

// Config is the broker connection. Broker is a URL like
// mqtt://localhost:1883 or mqtts://mqtt.example.net:8883.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
}

// Handler gets every message received on the subscriptions.
type Handler func(ctx context.Context, m *paho.Publish)

// Setup connects to the broker. The connection is kept up in the
// background; subscribe topics are (re)subscribed on every connect and an
// online status is published retained on statusChannel with an offline
// will message.
func Setup(ctx context.Context, log *slog.Logger, cfg Config, statusChannel string, subscribe []string, handler Handler) (*autopaho.ConnectionManager, error) {
	broker, err := url.Parse(cfg.Broker)
	if err != nil {
		return nil, fmt.Errorf("broker url: %w", err)
	}

	log = log.With("broker", broker.Host)
	log.InfoContext(ctx, "mqtt", "clientID", cfg.ClientID)

	publishOnlineMessage := func(cm *autopaho.ConnectionManager) {
		if len(statusChannel) == 0 {
			return
		}
		msg, err := StatusMessageJSON(true)
		if err != nil {
			log.Warn("mqtt status error", "err", err)
		}
		log.Debug("sending mqtt status message", "topic", statusChannel, "msg", msg)
		expireSeconds := uint32(86400)
		_, err = cm.Publish(ctx, &paho.Publish{
			Topic:   statusChannel,
			Payload: msg,
			QoS:     1,
			Retain:  true,
			Properties: &paho.PublishProperties{
				MessageExpiry: &expireSeconds,
			},
		})
		if err != nil {
			log.Warn("mqtt status publish error", "err", err)
		}
	}

	offlineMessage, err := StatusMessageJSON(false)
	if err != nil {
		return nil, fmt.Errorf("status message: %w", err)
	}

	mqttcfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{broker},
		CleanStartOnInitialConnection: true,
		SessionExpiryInterval:         60,
		KeepAlive:                     120,

		OnConnectionUp: func(cm *autopaho.ConnectionManager, connAck *paho.Connack) {
			log.Info("mqtt connection up")

			if len(subscribe) > 0 {
				subscriptions := []paho.SubscribeOptions{}
				for _, s := range subscribe {
					subscriptions = append(subscriptions, paho.SubscribeOptions{
						Topic: s,
						QoS:   1,
					})
				}

				suback, err := cm.Subscribe(ctx, &paho.Subscribe{
					Subscriptions: subscriptions,
				})
				if err != nil {
					if suback != nil && suback.Properties != nil {
						log.Error("mqtt subscribe error", "err", err, "reason", suback.Properties.ReasonString)
					} else {
						log.Error("mqtt subscribe error", "err", err)
					}
					return
				}
				log.Debug("mqtt subscription setup", "topics", subscribe)
			}

			publishOnlineMessage(cm)
		},
		OnConnectError: func(err error) {
			log.Error("mqtt connect", "err", err)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: cfg.ClientID,
			OnClientError: func(err error) {
				log.Error("mqtt client error", "err", err)
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				if d.Properties != nil {
					log.Error("mqtt server requested disconnect", "reason", d.Properties.ReasonString)
				} else {
					log.Error("mqtt server requested disconnect", "reasonCode", d.ReasonCode)
				}
			},
		},
	}

	switch broker.Scheme {
	case "mqtts", "ssl", "tls":
		mqttcfg.TlsCfg = &tls.Config{
			MinVersion: tls.VersionTLS12,
			ServerName: broker.Hostname(),
		}
	}

	if len(cfg.Username) > 0 {
		mqttcfg.ConnectUsername = cfg.Username
		mqttcfg.ConnectPassword = []byte(cfg.Password)
	}

	mqttcfg.OnPublishReceived = []func(paho.PublishReceived) (bool, error){
		func(pr paho.PublishReceived) (bool, error) {
			if handler == nil {
				log.Info("mqtt message (unhandled)", "topic", pr.Packet.Topic, "payload", pr.Packet.Payload)
				return true, nil
			}
			handler(ctx, pr.Packet)
			return true, nil
		},
	}

	if len(statusChannel) > 0 {
		mqttcfg.WillMessage = &paho.WillMessage{
			Retain:  true,
			Topic:   statusChannel,
			Payload: offlineMessage,
		}
		mqttcfg.WillProperties = &paho.WillProperties{
			WillDelayInterval: paho.Uint32(30),
			MessageExpiry:     paho.Uint32(86400),
		}
	}

	errlog := logger.NewStdLog("mqtt error", true, log)
	mqttcfg.Errors = errlog
	mqttcfg.PahoErrors = errlog

	cm, err := autopaho.NewConnection(ctx, mqttcfg)
	if err != nil {
		return cm, err
	}

	go func() {
		for {
			select {
			case <-time.After(1 * time.Hour):
				publishOnlineMessage(cm)
			case <-cm.Done():
				return
			}
		}
	}()

	return cm, nil
}

// Publisher is the part of the connection manager needed to send
// messages.
type Publisher interface {
	Publish(ctx context.Context, p *paho.Publish) (*paho.PublishResponse, error)
}

// PublishJSON sends v encoded as JSON with QoS 1.
func PublishJSON(ctx context.Context, p Publisher, topic string, v any, retain bool) error {
	js, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = p.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: js,
		QoS:     1,
		Retain:  retain,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

type StatusMessage struct {
	Online    bool
	Version   version.Info
	UpdatedMQ time.Time
}

func StatusMessageJSON(online bool) ([]byte, error) {
	sm := &StatusMessage{
		Online:    online,
		Version:   version.VersionInfo(),
		UpdatedMQ: time.Now().Truncate(time.Second),
	}
	return json.Marshal(sm)
}
