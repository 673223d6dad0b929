package mqttcm

import (
	"fmt"
	"strings"

	"go.ntppool.org/common/config/depenv"
)

type MQTTTopics struct {
	e depenv.DeploymentEnvironment
}

func NewTopics(depEnv depenv.DeploymentEnvironment) *MQTTTopics {
	return &MQTTTopics{e: depEnv}
}

func (t *MQTTTopics) prefix() string {
	return fmt.Sprintf("/%s/tables", t.e)
}

// Outcome is where observations for one table are published.
func (t *MQTTTopics) Outcome(id string) string {
	return fmt.Sprintf("%s/outcomes/%s", t.prefix(), id)
}

func (t *MQTTTopics) OutcomeSubscription() string {
	return fmt.Sprintf("%s/outcomes/+", t.prefix())
}

// Selection carries the current selection cycle as a retained message.
func (t *MQTTTopics) Selection() string {
	return fmt.Sprintf("%s/selection", t.prefix())
}

func (t *MQTTTopics) Status(name string) string {
	return fmt.Sprintf("%s/status/%s", t.prefix(), name)
}

// ParseOutcomeTopic returns the table ID from an outcome topic.
func (t *MQTTTopics) ParseOutcomeTopic(topic string) (string, error) {
	// /devel/tables/outcomes/table-7
	rest, ok := strings.CutPrefix(topic, t.prefix()+"/outcomes/")
	if !ok || rest == "" || strings.Contains(rest, "/") {
		return "", fmt.Errorf("could not parse outcome topic: %q", topic)
	}
	return rest, nil
}
