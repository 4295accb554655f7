package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/bus"
	"github.com/Sai-04021210/Smart-Grid-IoT-Analytics/internal/storage"
)

// Transport is the pub/sub connection the gateway rides on.
type Transport interface {
	Subscribe(topic string, handler bus.MessageHandler) error
	Publish(topic string, payload any) error
	Connected() bool
}

// Registry answers whether a device is known and persists canonical records.
type Registry interface {
	MeterExists(ctx context.Context, meterID string) (bool, error)
	SourceExists(ctx context.Context, sourceID, sourceType string) (bool, error)
	CreateReading(ctx context.Context, reading storage.EnergyReading) error
	CreateGenerationSample(ctx context.Context, sample storage.GenerationSample) error
}

// ObservationHandler is invoked for observational messages (grid status,
// pricing updates) that carry no persistence side effect yet.
type ObservationHandler func(payload []byte)

const handlerTimeout = 5 * time.Second

// Gateway subscribes to device telemetry topics, validates inbound
// messages and persists canonical records. Every per-message failure is
// logged and dropped; nothing propagates back to the transport.
type Gateway struct {
	transport Transport
	registry  Registry
	namespace string
	logger    *slog.Logger

	onGridStatus    ObservationHandler
	onPricingUpdate ObservationHandler
}

func New(transport Transport, registry Registry, namespace string, logger *slog.Logger) *Gateway {
	g := &Gateway{
		transport: transport,
		registry:  registry,
		namespace: namespace,
		logger:    logger,
	}
	g.onGridStatus = func(payload []byte) {
		logger.Info("grid status update", slog.String("payload", string(payload)))
	}
	g.onPricingUpdate = func(payload []byte) {
		logger.Info("pricing update", slog.String("payload", string(payload)))
	}
	return g
}

// OnGridStatus replaces the default grid-status observer.
func (g *Gateway) OnGridStatus(handler ObservationHandler) {
	g.onGridStatus = handler
}

// OnPricingUpdate replaces the default pricing-update observer.
func (g *Gateway) OnPricingUpdate(handler ObservationHandler) {
	g.onPricingUpdate = handler
}

// Start subscribes to all telemetry topic patterns.
func (g *Gateway) Start() error {
	subscriptions := []struct {
		topic   string
		handler bus.MessageHandler
	}{
		{g.namespace + "/meters/+/data", g.handleMeterData},
		{g.namespace + "/solar/+/data", g.handleSolarData},
		{g.namespace + "/wind/+/data", g.handleWindData},
		{g.namespace + "/grid/status", func(_ string, payload []byte) { g.onGridStatus(payload) }},
		{g.namespace + "/pricing/update", func(_ string, payload []byte) { g.onPricingUpdate(payload) }},
	}
	for _, sub := range subscriptions {
		if err := g.transport.Subscribe(sub.topic, sub.handler); err != nil {
			return fmt.Errorf("subscribe %s: %w", sub.topic, err)
		}
		g.logger.Info("subscribed", slog.String("topic", sub.topic))
	}
	return nil
}

func (g *Gateway) Connected() bool {
	return g.transport.Connected()
}

// PublishPricingUpdate broadcasts a pricing result to subscribers.
func (g *Gateway) PublishPricingUpdate(payload any) error {
	return g.transport.Publish(g.namespace+"/pricing/update", payload)
}

// PublishGridAlert broadcasts a grid alert.
func (g *Gateway) PublishGridAlert(payload any) error {
	return g.transport.Publish(g.namespace+"/grid/alert", payload)
}

func (g *Gateway) handleMeterData(topic string, payload []byte) {
	meterID, err := deviceIDFromTopic(topic)
	if err != nil {
		g.logger.Warn("bad meter topic", slog.String("topic", topic), slog.String("error", err.Error()))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	exists, err := g.registry.MeterExists(ctx, meterID)
	if err != nil {
		g.logger.Error("meter lookup failed", slog.String("meter", meterID), slog.String("error", err.Error()))
		return
	}
	if !exists {
		g.logger.Warn("unknown meter id", slog.String("meter", meterID))
		return
	}
	reading, err := decodeReading(meterID, payload, time.Now().UTC())
	if err != nil {
		g.logger.Warn("dropped meter message", slog.String("meter", meterID), slog.String("error", err.Error()))
		return
	}
	if err := g.registry.CreateReading(ctx, reading); err != nil {
		g.logger.Error("store reading failed", slog.String("meter", meterID), slog.String("error", err.Error()))
		return
	}
	g.logger.Debug("stored energy reading", slog.String("meter", meterID))
}

func (g *Gateway) handleSolarData(topic string, payload []byte) {
	g.handleGeneration(topic, payload, "solar")
}

func (g *Gateway) handleWindData(topic string, payload []byte) {
	g.handleGeneration(topic, payload, "wind")
}

func (g *Gateway) handleGeneration(topic string, payload []byte, sourceType string) {
	sourceID, err := deviceIDFromTopic(topic)
	if err != nil {
		g.logger.Warn("bad generation topic", slog.String("topic", topic), slog.String("error", err.Error()))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	exists, err := g.registry.SourceExists(ctx, sourceID, sourceType)
	if err != nil {
		g.logger.Error("source lookup failed", slog.String("source", sourceID), slog.String("error", err.Error()))
		return
	}
	if !exists {
		g.logger.Warn("unknown source id", slog.String("source", sourceID), slog.String("type", sourceType))
		return
	}
	sample, err := decodeGeneration(sourceID, sourceType, payload, time.Now().UTC())
	if err != nil {
		g.logger.Warn("dropped generation message", slog.String("source", sourceID), slog.String("error", err.Error()))
		return
	}
	if err := g.registry.CreateGenerationSample(ctx, sample); err != nil {
		g.logger.Error("store generation failed", slog.String("source", sourceID), slog.String("error", err.Error()))
		return
	}
	g.logger.Debug("stored generation sample", slog.String("source", sourceID), slog.String("type", sourceType))
}

// deviceIDFromTopic extracts the device segment from
// <ns>/<category>/<device_id>/data.
func deviceIDFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 4 || parts[2] == "" {
		return "", fmt.Errorf("topic %q has no device segment", topic)
	}
	return parts[2], nil
}
