package admin

import (
	"testing"

	"github.com/Shopify/sarama"
	"github.com/tryfix/log"
)

func testAdmin(t *testing.T, broker *sarama.MockBroker) *KafkaAdmin {
	config := sarama.NewConfig()
	config.Version = sarama.V1_0_0_0
	saramaAdmin, err := sarama.NewClusterAdmin([]string{broker.Addr()}, config)
	if err != nil {
		t.Fatal(err)
	}

	a := &KafkaAdmin{admin: saramaAdmin, logger: log.NewNoopLogger()}
	t.Cleanup(func() {
		if err := a.Close(); err != nil {
			t.Error(err)
		}
	})

	return a
}

func TestKafkaAdmin_FetchInfo(t *testing.T) {
	seedBroker := sarama.NewMockBroker(t, 1)
	defer seedBroker.Close()

	seedBroker.SetHandlerByMap(map[string]sarama.MockResponse{
		"MetadataRequest": sarama.NewMockMetadataResponse(t).
			SetController(seedBroker.BrokerID()).
			SetLeader(`results`, 0, seedBroker.BrokerID()).
			SetLeader(`results`, 1, seedBroker.BrokerID()).
			SetBroker(seedBroker.Addr(), seedBroker.BrokerID()),
	})

	tps, err := testAdmin(t, seedBroker).FetchInfo([]string{`results`})
	if err != nil {
		t.Fatal(err)
	}

	if tps[`results`].NumPartitions != 2 || tps[`results`].Error != nil {
		t.Errorf(`unexpected topic info %+v`, tps[`results`])
	}
}

func TestKafkaAdmin_EnsureTopics(t *testing.T) {
	seedBroker := sarama.NewMockBroker(t, 1)
	defer seedBroker.Close()

	seedBroker.SetHandlerByMap(map[string]sarama.MockResponse{
		"MetadataRequest": sarama.NewMockMetadataResponse(t).
			SetController(seedBroker.BrokerID()).
			SetLeader(`results`, 0, seedBroker.BrokerID()).
			SetBroker(seedBroker.Addr(), seedBroker.BrokerID()),
		"CreateTopicsRequest": sarama.NewMockCreateTopicsResponse(t),
	})

	err := testAdmin(t, seedBroker).EnsureTopics([]*Topic{
		{Name: `results`, NumPartitions: 1, ReplicationFactor: 1},
		{Name: `results_aggregates`, NumPartitions: 3, ReplicationFactor: 1},
	})
	if err != nil {
		t.Fatal(err)
	}

	var created []string
	for _, rr := range seedBroker.History() {
		if req, ok := rr.Request.(*sarama.CreateTopicsRequest); ok {
			for name := range req.TopicDetails {
				created = append(created, name)
			}
		}
	}

	if len(created) != 1 || created[0] != `results_aggregates` {
		t.Errorf(`expected only results_aggregates to be created, got %v`, created)
	}
}

func TestKafkaAdmin_DeleteTopics(t *testing.T) {
	seedBroker := sarama.NewMockBroker(t, 1)
	defer seedBroker.Close()

	seedBroker.SetHandlerByMap(map[string]sarama.MockResponse{
		"MetadataRequest": sarama.NewMockMetadataResponse(t).
			SetController(seedBroker.BrokerID()).
			SetBroker(seedBroker.Addr(), seedBroker.BrokerID()),
		"DeleteTopicsRequest": sarama.NewMockDeleteTopicsResponse(t),
	})

	if err := testAdmin(t, seedBroker).DeleteTopics([]string{`results`}); err != nil {
		t.Fatal(err)
	}
}
