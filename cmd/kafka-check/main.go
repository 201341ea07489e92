package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/segmentio/kafka-go"

	"karriere-harvester/common"
	"karriere-harvester/internal/config"
)

type topicState struct {
	Topic      string
	Partitions int
}

func main() {
	cfg, err := config.Load(common.GetEnv("CONFIG_FILE", ""))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	broker := cfg.Kafka.Broker
	topics := []string{cfg.Kafka.RequestsTopic, cfg.Kafka.ResultsTopic, cfg.Kafka.EdgesTopic, cfg.Kafka.DLQTopic}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", broker)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to Kafka at %s: %v\n", broker, err)
		os.Exit(1)
	}
	defer conn.Close()

	partitions, err := conn.ReadPartitions()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read metadata: %v\n", err)
		os.Exit(1)
	}

	states := checkTopics(partitions, topics)
	fmt.Printf("connected to Kafka at %s (%d partitions)\n", broker, len(partitions))
	render(os.Stdout, states)
	if missing := missingTopics(states); len(missing) > 0 {
		fmt.Fprintf(os.Stderr, "missing topics: %v\n", missing)
		os.Exit(2)
	}
}

// checkTopics counts the partitions of each wanted topic.
func checkTopics(partitions []kafka.Partition, topics []string) []topicState {
	counts := make(map[string]int, len(topics))
	for _, p := range partitions {
		counts[p.Topic]++
	}
	states := make([]topicState, 0, len(topics))
	for _, topic := range topics {
		states = append(states, topicState{Topic: topic, Partitions: counts[topic]})
	}
	sort.Slice(states, func(i, j int) bool { return states[i].Topic < states[j].Topic })
	return states
}

func missingTopics(states []topicState) []string {
	var missing []string
	for _, s := range states {
		if s.Partitions == 0 {
			missing = append(missing, s.Topic)
		}
	}
	return missing
}

func render(w io.Writer, states []topicState) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Topic", "Partitions", "Status"})
	for _, s := range states {
		status := "ok"
		if s.Partitions == 0 {
			status = "missing"
		}
		t.AppendRow(table.Row{s.Topic, s.Partitions, status})
	}
	t.Render()
}
