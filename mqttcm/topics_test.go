package mqttcm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.ntppool.org/common/config/depenv"
)

func TestTopics(t *testing.T) {
	topics := NewTopics(depenv.DeployDevel)

	assert.Equal(t, "/devel/tables/outcomes/t7", topics.Outcome("t7"))
	assert.Equal(t, "/devel/tables/outcomes/+", topics.OutcomeSubscription())
	assert.Equal(t, "/devel/tables/selection", topics.Selection())
	assert.Equal(t, "/devel/tables/status/rank1", topics.Status("rank1"))

	id, err := topics.ParseOutcomeTopic(topics.Outcome("t7"))
	require.NoError(t, err)
	assert.Equal(t, "t7", id)

	for _, bad := range []string{
		"/devel/tables/outcomes/",
		"/devel/tables/outcomes/a/b",
		"/prod/tables/outcomes/t7",
		"/devel/tables/selection",
	} {
		_, err := topics.ParseOutcomeTopic(bad)
		assert.Error(t, err, bad)
	}
}
