// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const publishTimeout = 10 * time.Second

// Publisher sends analysis results to an MQTT broker
type Publisher struct {
	client      mqtt.Client
	topicPrefix string
	logger      *Logger
}

// mqttMessage is one retained message ready to publish
type mqttMessage struct {
	Topic   string
	Payload []byte
}

// summaryPayload is published to <prefix>/<user>/summary
type summaryPayload struct {
	UserID          int             `json:"userId"`
	Period          int             `json:"period"`
	Currency        string          `json:"currency"`
	CurrentTotal    float64         `json:"currentTotal"`
	PredictedTotal  float64         `json:"predictedTotal"`
	PreviousTotal   float64         `json:"previousTotal"`
	Savings         float64         `json:"savings"`
	SavingsPct      Percentage      `json:"savingsPct"`
	Rank            int             `json:"rank"`
	CohortAverage   float64         `json:"cohortAverage"`
	CohortTotals    map[int]float64 `json:"cohortTotals"`
	Recommendations int             `json:"recommendations"`
	GeneratedAt     time.Time       `json:"generatedAt"`
}

// NewPublisher connects to the configured broker
func NewPublisher(cfg MQTTConfig, logger *Logger) (*Publisher, error) {
	if !cfg.Enabled {
		return nil, &ConfigError{Field: "mqtt.enabled", Message: "MQTT publishing is not enabled in config"}
	}
	if cfg.Broker == "" {
		return nil, &ConfigError{Field: "mqtt.broker", Message: "MQTT broker address is required when enabled"}
	}

	topicPrefix := cfg.TopicPrefix
	if topicPrefix == "" {
		topicPrefix = "appliancebudget"
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "appliancebudget"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(brokerURL(cfg.Broker))
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(publishTimeout)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return nil, fmt.Errorf("connecting to MQTT broker %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", err)
	}

	logger.Debug("Connected to MQTT broker", "broker", cfg.Broker, "client_id", clientID)

	return &Publisher{
		client:      client,
		topicPrefix: topicPrefix,
		logger:      logger.WithComponent("publisher"),
	}, nil
}

// PublishAnalysis publishes the summary and one message per appliance as retained messages
func (p *Publisher) PublishAnalysis(result *AnalysisResult) error {
	messages, err := analysisMessages(p.topicPrefix, result)
	if err != nil {
		return err
	}

	for _, m := range messages {
		token := p.client.Publish(m.Topic, 1, true, m.Payload)
		if !token.WaitTimeout(publishTimeout) {
			return fmt.Errorf("publishing to %s: timed out", m.Topic)
		}
		if err := token.Error(); err != nil {
			return fmt.Errorf("publishing to %s: %w", m.Topic, err)
		}
	}

	p.logger.Info("Published analysis", "user_id", result.UserID, "messages", len(messages))
	return nil
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

// analysisMessages builds the topics and payloads for one analysis result
func analysisMessages(prefix string, result *AnalysisResult) ([]mqttMessage, error) {
	base := fmt.Sprintf("%s/%d", strings.TrimSuffix(prefix, "/"), result.UserID)

	summary, err := json.Marshal(summaryPayload{
		UserID:          result.UserID,
		Period:          result.CurrentPeriod,
		Currency:        result.Currency,
		CurrentTotal:    result.CurrentPeriodTotal,
		PredictedTotal:  result.PredictedTotal,
		PreviousTotal:   result.PreviousPeriodTotal,
		Savings:         result.PeriodSavings,
		SavingsPct:      result.PeriodSavingsPct,
		Rank:            result.Cohort.Rank,
		CohortAverage:   result.Cohort.CohortAverage,
		CohortTotals:    result.Cohort.TotalsByUser(),
		Recommendations: len(result.Recommendations),
		GeneratedAt:     result.GeneratedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding summary: %w", err)
	}

	messages := []mqttMessage{{Topic: base + "/summary", Payload: summary}}
	slugs := make(map[string]string, len(result.Recommendations))
	for _, rec := range result.Recommendations {
		slug := topicSlug(rec.Appliance)
		if other, ok := slugs[slug]; ok {
			return nil, &ValidationError{
				Field:   "appliance",
				Value:   rec.Appliance,
				Message: fmt.Sprintf("topic %q is already used by %q", slug, other),
			}
		}
		slugs[slug] = rec.Appliance

		payload, err := json.Marshal(rec)
		if err != nil {
			return nil, fmt.Errorf("encoding recommendation for %s: %w", rec.Appliance, err)
		}
		messages = append(messages, mqttMessage{
			Topic:   base + "/appliances/" + slug,
			Payload: payload,
		})
	}

	return messages, nil
}

// topicSlug lowercases a name and collapses every run of non letters or digits into one underscore.
// Letters outside ASCII are kept; MQTT topics are UTF-8.
func topicSlug(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			lastUnderscore = false
			continue
		}
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}

// brokerURL adds the tcp scheme when the broker is given as host:port
func brokerURL(broker string) string {
	if strings.Contains(broker, "://") {
		return broker
	}
	return "tcp://" + broker
}
