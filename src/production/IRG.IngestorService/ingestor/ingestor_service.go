package irgingestor

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	config "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Config"
	"gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.IngestorService/client"
	logger "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Logger"
	irgmodels "gitlab.com/maplesense1/irg.irrigation_server/src/production/IRG.Models"
)

const (
	topicRoot   = "irrigation"
	topicKind   = "sensors"
	errorPrefix = "ingestor/errors/"
)

var (
	ErrInvalidTopic   = errors.New("invalid topic, expected irrigation/sensors/<sensor>")
	ErrInvalidPayload = errors.New("invalid payload")
)

// ReadingSink stores decoded readings
type ReadingSink interface {
	CreateReadings(ctx context.Context, readings []client.ReadingPayload) (int, error)
}

// SensorMessage is the JSON payload published by the field controllers
type SensorMessage struct {
	Value         *float64 `json:"valor_coleta"`
	CollectedAt   string   `json:"data_hora_coleta"`
	RelayStatus   *int     `json:"status_rele"`
	TriggerReason string   `json:"motivo_acionamento"`
}

// SensorFromTopic extracts the sensor name from irrigation/sensors/<sensor>
func SensorFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != topicRoot || parts[1] != topicKind || strings.TrimSpace(parts[2]) == "" {
		return "", ErrInvalidTopic
	}
	return parts[2], nil
}

// DecodeMessage turns one MQTT message into a reading. A missing timestamp
// becomes receivedAt; a present one must parse.
func DecodeMessage(sensor string, payload []byte, receivedAt time.Time) (client.ReadingPayload, error) {
	var msg SensorMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return client.ReadingPayload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if msg.Value == nil {
		return client.ReadingPayload{}, fmt.Errorf("%w: valor_coleta is required", ErrInvalidPayload)
	}

	collectedAt := receivedAt.UTC()
	if msg.CollectedAt != "" {
		ts, err := irgmodels.ParseCollectedAt(msg.CollectedAt, time.UTC)
		if err != nil {
			return client.ReadingPayload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		collectedAt = ts
	}

	if msg.RelayStatus != nil && *msg.RelayStatus != irgmodels.RelayOff && *msg.RelayStatus != irgmodels.RelayOn {
		return client.ReadingPayload{}, fmt.Errorf("%w: status_rele must be 0 or 1", ErrInvalidPayload)
	}

	return client.ReadingPayload{
		Sensor:        sensor,
		Value:         *msg.Value,
		CollectedAt:   collectedAt.Format(time.RFC3339Nano),
		RelayStatus:   msg.RelayStatus,
		TriggerReason: msg.TriggerReason,
	}, nil
}

type Ingestor struct {
	cfg        *config.IngestorConfig
	sink       ReadingSink
	mqttClient mqtt.Client
	msgCh      chan client.ReadingPayload
	done       chan struct{}
	stopOnce   sync.Once
	wg         sync.WaitGroup
	logger     *logger.Logger
	now        func() time.Time
}

func New(cfg *config.IngestorConfig, sink ReadingSink, log *logger.Logger) *Ingestor {
	return &Ingestor{
		cfg:    cfg,
		sink:   sink,
		msgCh:  make(chan client.ReadingPayload, 4096),
		done:   make(chan struct{}),
		logger: log.WithComponent("mqtt-ingestor"),
		now:    time.Now,
	}
}

// Start connects to the broker and starts the batch writer
func (i *Ingestor) Start(ctx context.Context) error {
	opts := mqtt.NewClientOptions().
		AddBroker(i.cfg.GetMQTTBrokerURL()).
		SetClientID(i.cfg.MQTT.ClientID).
		SetOrderMatters(false).
		SetKeepAlive(i.cfg.MQTT.KeepAlive).
		SetPingTimeout(i.cfg.MQTT.PingTimeout).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetCleanSession(false)

	if i.cfg.MQTT.BrokerUser != "" {
		opts.SetUsername(i.cfg.MQTT.BrokerUser)
		opts.SetPassword(i.cfg.MQTT.BrokerPass)
	}

	if i.cfg.MQTT.UseTLS {
		tlsCfg, err := tlsConfig(i.cfg.MQTT.CACertPath)
		if err != nil {
			return err
		}
		opts.SetTLSConfig(tlsCfg)
	}

	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		i.logger.WithError(err).Error("MQTT connection lost")
	}
	opts.OnConnect = func(c mqtt.Client) {
		topic := i.cfg.MQTT.Topic
		if i.cfg.MQTT.SharedGroup != "" {
			topic = fmt.Sprintf("$share/%s/%s", i.cfg.MQTT.SharedGroup, i.cfg.MQTT.Topic)
		}
		i.logger.WithField("topic", topic).Info("MQTT connected, subscribing to topic")
		if token := c.Subscribe(topic, 1, i.onMessage); token.Wait() && token.Error() != nil {
			i.logger.WithError(token.Error()).WithField("topic", topic).Error("Failed to subscribe to MQTT topic")
		}
	}

	i.mqttClient = mqtt.NewClient(opts)
	if tk := i.mqttClient.Connect(); tk.Wait() && tk.Error() != nil {
		return tk.Error()
	}

	i.startWriter(ctx)
	return nil
}

func (i *Ingestor) startWriter(ctx context.Context) {
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		i.batchWriter(ctx)
	}()
}

// Stop disconnects from the broker and flushes pending readings
func (i *Ingestor) Stop() {
	i.stopOnce.Do(func() {
		if i.mqttClient != nil && i.mqttClient.IsConnected() {
			i.mqttClient.Disconnect(500)
		}
		close(i.done)
		i.wg.Wait()
	})
}

func (i *Ingestor) IsConnected() bool {
	return i.mqttClient != nil && i.mqttClient.IsConnected()
}

func (i *Ingestor) onMessage(_ mqtt.Client, m mqtt.Message) {
	i.handle(m.Topic(), m.Payload())
}

// handle decodes one message and queues it. Rejected messages are reported
// on the sensor's error topic.
func (i *Ingestor) handle(topic string, payload []byte) {
	i.logger.Logger.Debug().Str("topic", topic).Str("payload", string(payload)).Msg("Received MQTT message")

	sensor, err := SensorFromTopic(topic)
	if err != nil {
		i.logger.WithField("topic", topic).Warn("Invalid topic format")
		i.publishError("unknown", "invalid_topic", fmt.Sprintf("%v: %s", err, topic))
		return
	}

	reading, err := DecodeMessage(sensor, payload, i.now())
	if err != nil {
		i.logger.WithError(err).WithField("sensor", sensor).Warn("Rejected MQTT message")
		i.publishError(sensor, "invalid_payload", err.Error())
		return
	}

	select {
	case i.msgCh <- reading:
	case <-i.done:
	}
}

func (i *Ingestor) batchWriter(ctx context.Context) {
	batch := make([]client.ReadingPayload, 0, i.cfg.Batch.Size)
	timer := time.NewTimer(i.cfg.Batch.Window)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		n, err := i.sink.CreateReadings(ctx, batch)
		if err != nil {
			i.logger.WithError(err).WithField("batch_size", len(batch)).Error("Error sending batch to API Service")
			for _, sensor := range sensorsOf(batch) {
				i.publishError(sensor, "create_readings_error", fmt.Sprintf("Failed to store readings: %v", err))
			}
		} else {
			i.logger.WithField("count", n).Info("Batch stored")
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-i.done:
		drain:
			for {
				select {
				case rd := <-i.msgCh:
					batch = append(batch, rd)
					if len(batch) >= i.cfg.Batch.Size {
						flush()
					}
				default:
					break drain
				}
			}
			flush()
			return
		case rd := <-i.msgCh:
			batch = append(batch, rd)
			if len(batch) >= i.cfg.Batch.Size {
				flush()
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(i.cfg.Batch.Window)
			}
		case <-timer.C:
			flush()
			timer.Reset(i.cfg.Batch.Window)
		}
	}
}

func sensorsOf(batch []client.ReadingPayload) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range batch {
		if !seen[r.Sensor] {
			seen[r.Sensor] = true
			out = append(out, r.Sensor)
		}
	}
	return out
}

func tlsConfig(caFile string) (*tls.Config, error) {
	cfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if caFile == "" {
		return cfg, nil
	}
	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, err
	}
	cp := x509.NewCertPool()
	if !cp.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("bad CA file")
	}
	cfg.RootCAs = cp
	return cfg, nil
}

// publishError publishes an error message to ingestor/errors/<sensor> for the field controller
func (i *Ingestor) publishError(sensor, errorType, message string) {
	if i.mqttClient == nil || !i.mqttClient.IsConnected() {
		return
	}

	payloadJSON, err := json.Marshal(map[string]interface{}{
		"error_type": errorType,
		"message":    message,
		"sensor":     sensor,
		"timestamp":  i.now().UTC(),
	})
	if err != nil {
		i.logger.WithError(err).Error("Failed to marshal error payload")
		return
	}

	errorTopic := errorPrefix + sensor
	token := i.mqttClient.Publish(errorTopic, 1, false, payloadJSON)
	if token.Wait() && token.Error() != nil {
		i.logger.WithError(token.Error()).WithField("topic", errorTopic).Error("Failed to publish error")
	} else {
		i.logger.WithField("topic", errorTopic).Info("Published error")
	}
}
