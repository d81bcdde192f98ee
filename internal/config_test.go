package internal

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	req := require.New(t)
	t.Setenv("BADGER_FILEPATH", "/tmp/chat-sync")
	t.Setenv("SERVER_URL", "https://chat.example.com")
	t.Setenv("SENDER_ID", "alice")
	t.Setenv("AUTH_SECRET", "s3cr3t")
	t.Setenv("SYNC_INTERVAL", "30s")

	config, err := LoadConfig()

	req.NoError(err)
	req.Equal("alice", config.SenderID)
	req.Equal(30*time.Second, config.SyncInterval)
	req.Equal(10*time.Second, config.DeliveryTimeout)
	req.Equal(4, config.MaxConcurrentQueries)
	req.Equal("chat.messages", config.NatsSubject)
}

func TestLoadConfig_Missing_Required(t *testing.T) {
	req := require.New(t)
	for _, key := range []string{"BADGER_FILEPATH", "SERVER_URL", "SENDER_ID", "AUTH_SECRET"} {
		t.Setenv(key, "restored after the test")
		req.NoError(os.Unsetenv(key))
	}

	_, err := LoadConfig()
	req.Error(err)
}

func TestCharacterRune(t *testing.T) {
	req := require.New(t)
	r, err := CharacterRune("€")
	req.NoError(err)
	req.Equal('€', r)

	_, err = CharacterRune("**")
	req.Error(err)
}
