// Package events publica transiciones de estado de lote en RabbitMQ para que
// colaboradores (contabilidad, reportes) reaccionen sin acoplarse al núcleo.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/tu-usuario/sepa-incasso/internal/application/batch"
	"github.com/tu-usuario/sepa-incasso/internal/domain/entity"
	"github.com/tu-usuario/sepa-incasso/pkg/logger"
)

var _ batch.EventPublisher = (*Publisher)(nil)

// BatchStatusEvent es el payload publicado por cada transición de lote.
type BatchStatusEvent struct {
	BatchID   string    `json:"batch_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Timestamp time.Time `json:"timestamp"`
}

// Publisher productor AMQP sobre un exchange topic durable. La routing key es
// batch.status.<estado-destino> en minúsculas. Seguro para uso concurrente: el
// mutex serializa el uso del canal y su reapertura tras un error de protocolo.
type Publisher struct {
	conn     *amqp091.Connection
	mu       sync.Mutex
	channel  *amqp091.Channel
	exchange string
	log      *logger.Logger
}

// NewPublisher conecta a RabbitMQ y declara el exchange. El dial tiene timeout
// acotado para que el arranque no se cuelgue si el broker no responde.
func NewPublisher(amqpURL, exchange string, log *logger.Logger) (*Publisher, error) {
	conn, err := amqp091.DialConfig(amqpURL, amqp091.Config{Dial: amqp091.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("abrir canal AMQP: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declarar exchange %s: %w", exchange, err)
	}
	return &Publisher{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		log:      log.Component("events"),
	}, nil
}

// PublishBatchStatus publica la transición. Un fallo de publicación se loguea
// y se devuelve, pero el caller no debe revertir la transición por esto: el
// estado del lote en la base es la fuente de verdad.
func (p *Publisher) PublishBatchStatus(ctx context.Context, batchID string, from, to entity.BatchStatus) error {
	event := BatchStatusEvent{
		BatchID:   batchID,
		From:      string(from),
		To:        string(to),
		Timestamp: time.Now().UTC(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal evento: %w", err)
	}

	routingKey := "batch.status." + strings.ToLower(string(to))

	p.mu.Lock()
	defer p.mu.Unlock()

	err = p.channel.PublishWithContext(ctx,
		p.exchange, routingKey, false, false,
		amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   event.Timestamp,
			Body:        body,
		},
	)
	if err != nil {
		// Reintento único con canal nuevo: los canales AMQP se cierran ante
		// cualquier error de protocolo y hay que reabrirlos.
		ch, chErr := p.conn.Channel()
		if chErr != nil {
			p.log.Error().Err(err).Str("batch_id", batchID).Msg("publicación de evento falló y el canal no reabre")
			return fmt.Errorf("publicar evento: %w", err)
		}
		p.channel = ch
		if err = p.channel.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp091.Publishing{
			ContentType: "application/json",
			Timestamp:   event.Timestamp,
			Body:        body,
		}); err != nil {
			p.log.Error().Err(err).Str("batch_id", batchID).Msg("publicación de evento falló tras reintento")
			return fmt.Errorf("publicar evento: %w", err)
		}
	}

	p.log.Debug().Str("batch_id", batchID).Str("from", string(from)).Str("to", string(to)).Msg("evento de lote publicado")
	return nil
}

// Close cierra canal y conexión.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		p.conn.Close()
	}
}
