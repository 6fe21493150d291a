package mqtt

import (
	"context"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/korovkin/limiter"
	"github.com/pkg/errors"

	"github.com/jake-scott/blink-homekit/internal/pkg/accessory"
	"github.com/jake-scott/blink-homekit/internal/pkg/blink"
	"github.com/jake-scott/blink-homekit/internal/pkg/logging"
	"github.com/jake-scott/blink-homekit/internal/pkg/metrics"
)

const publishConcurrency = 4

var errNotConnected = errors.New("not connected to the MQTT broker")

// Config for the MQTT host
type Config struct {
	Broker          string `validate:"required,uri"`
	Username        string
	Password        string
	ClientID        string
	TopicPrefix     string `validate:"required"`
	DiscoveryPrefix string `validate:"required"`
	ImageDistance   int    `validate:"gte=1,lte=64"`
}

// broker is the part of the MQTT client the publisher needs
type broker interface {
	Publish(topic string, retained bool, payload []byte) error
}

type pahoBroker struct {
	client pahomqtt.Client
}

func (b pahoBroker) Publish(topic string, retained bool, payload []byte) error {
	if !b.client.IsConnected() {
		return errNotConnected
	}

	token := b.client.Publish(topic, 1, retained, payload)
	token.Wait()
	return token.Error()
}

type latestThumbnailer interface {
	LatestThumbnail(ctx context.Context) ([]byte, error)
}

// Publisher exposes the capability tables to Home Assistant over MQTT
type Publisher struct {
	cfg    Config
	topics Topics
	tables map[string]*accessory.Table
	order  []*accessory.Table
	gates  map[string]*imageGate

	client pahomqtt.Client
	broker broker
}

func New(cfg Config, tables []*accessory.Table) *Publisher {
	p := &Publisher{
		cfg:    cfg,
		topics: Topics{Prefix: cfg.TopicPrefix, Discovery: cfg.DiscoveryPrefix},
		tables: make(map[string]*accessory.Table),
		order:  tables,
		gates:  make(map[string]*imageGate),
	}

	for _, t := range tables {
		node := NodeID(t)
		p.tables[node] = t
		if t.Kind == accessory.KindCamera {
			p.gates[node] = newImageGate(cfg.ImageDistance)
		}
	}

	return p
}

// Start connects to the broker.  Discovery and state are published on
// every (re)connect and state again after every store refresh.
func (p *Publisher) Start(ctx context.Context, store *blink.Store) error {
	clientID := p.cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("blink-homekit-%s", logging.InstanceID())
	}

	opts := pahomqtt.NewClientOptions().
		AddBroker(p.cfg.Broker).
		SetClientID(clientID).
		SetUsername(p.cfg.Username).
		SetPassword(p.cfg.Password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetOrderMatters(false).
		SetWill(p.topics.availability(), "offline", 1, true).
		SetOnConnectHandler(func(c pahomqtt.Client) {
			logging.Logger(ctx).Infof("connected to MQTT broker %s", p.cfg.Broker)
			p.onConnect(ctx, c)
		}).
		SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
			logging.Logger(ctx).WithError(err).Warn("lost connection to MQTT broker")
		})

	p.client = pahomqtt.NewClient(opts)
	p.broker = pahoBroker{client: p.client}

	token := p.client.Connect()
	token.Wait()
	if err := token.Error(); err != nil {
		return errors.Wrapf(err, "connecting to MQTT broker %s", p.cfg.Broker)
	}

	store.OnRefresh(func(*blink.AccountSnapshot) {
		p.PublishState(ctx)
	})

	return nil
}

func (p *Publisher) Stop() {
	if p.client == nil || !p.client.IsConnected() {
		return
	}

	p.publish(context.Background(), Message{Topic: p.topics.availability(), Payload: []byte("offline"), Retained: true})
	p.client.Disconnect(1000)
}

func (p *Publisher) onConnect(ctx context.Context, c pahomqtt.Client) {
	p.publish(ctx, Message{Topic: p.topics.availability(), Payload: []byte("online"), Retained: true})
	p.PublishDiscovery(ctx)

	token := c.Subscribe(p.topics.commands(), 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		p.handleCommand(ctx, msg.Topic(), msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		logging.Logger(ctx).WithError(err).Errorf("subscribing to %s", p.topics.commands())
	}

	// republish when Home Assistant restarts
	c.Subscribe(p.topics.Discovery+"/status", 1, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		if string(msg.Payload()) == "online" {
			p.PublishDiscovery(ctx)
			p.PublishState(ctx)
		}
	})

	p.PublishState(ctx)
}

func (p *Publisher) publish(ctx context.Context, msg Message) {
	if err := p.broker.Publish(msg.Topic, msg.Retained, msg.Payload); err != nil {
		logging.Logger(ctx).WithError(err).Errorf("publishing to %s", msg.Topic)
	}
}

func (p *Publisher) PublishDiscovery(ctx context.Context) {
	for _, t := range p.order {
		msgs, err := DiscoveryMessages(p.topics, t)
		if err != nil {
			logging.Logger(ctx).WithError(err).Errorf("discovery for %s", t.Name())
			continue
		}
		for _, m := range msgs {
			p.publish(ctx, m)
		}
	}
}

// PublishState publishes every table, a few at a time
func (p *Publisher) PublishState(ctx context.Context) {
	if len(p.order) == 0 {
		return
	}

	limit := limiter.NewConcurrencyLimiter(publishConcurrency)
	for _, t := range p.order {
		t := t
		limit.Execute(func() {
			p.publishTable(ctx, t)
		})
	}
	limit.Wait()
}

func (p *Publisher) publishTable(ctx context.Context, t *accessory.Table) {
	ctx = logging.WithDevice(ctx, t.ID)

	msgs, err := StateMessages(ctx, p.topics, t)
	if err != nil {
		logging.Logger(ctx).WithError(err).Warnf("reading state of %s", t.Name())
	}
	for _, m := range msgs {
		p.publish(ctx, m)
	}

	if cam, ok := t.Device().(latestThumbnailer); ok {
		p.publishImage(ctx, t, cam)
	}
}

func (p *Publisher) publishImage(ctx context.Context, t *accessory.Table, cam latestThumbnailer) {
	node := NodeID(t)

	data, err := cam.LatestThumbnail(ctx)
	if err != nil {
		logging.Logger(ctx).WithError(err).Warnf("fetching thumbnail of %s", t.Name())
		return
	}

	changed, err := p.gates[node].Changed(data)
	if err != nil {
		logging.Logger(ctx).WithError(err).Warnf("comparing thumbnail of %s", t.Name())
		return
	}
	if !changed {
		return
	}

	p.publish(ctx, Message{Topic: p.topics.image(node), Payload: data, Retained: true})
}

func (p *Publisher) handleCommand(ctx context.Context, topic string, payload []byte) {
	node, object, ok := p.topics.parseCommand(topic)
	if !ok {
		return
	}
	t, ok := p.tables[node]
	if !ok {
		logging.Logger(ctx).Warnf("command for unknown device %s", node)
		return
	}

	ctx = logging.WithTxnID(logging.WithDevice(ctx, t.ID), uuid.New().String())
	logging.Logger(ctx).Infof("MQTT command %s %s for %s", object, payload, t.Name())

	err := Command(ctx, t, object, string(payload))
	metrics.CharacteristicWrites.WithLabelValues("mqtt", object, metrics.Result(err)).Inc()
	if err != nil {
		logging.Logger(ctx).WithError(err).Errorf("MQTT command %s for %s", object, t.Name())
	}

	p.publishTable(ctx, t)
}
