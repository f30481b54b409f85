package notify_libnotify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestArgs(t *testing.T) {
	n := New(Options{Urgency: "critical", Expire: 5 * time.Second})
	require.Equal(t,
		[]string{"--app-name=apt-publisher", "--urgency=critical", "--expire-time=5000", "published", "app 1.0\nhttps://x"},
		n.Args("published", "app 1.0", "https://x"))

	require.Equal(t, []string{"--app-name=apt-publisher", "t", "u"}, New(Options{}).Args("t", "", "u"))
}

func TestSoftSwallowsMissingBinary(t *testing.T) {
	n := NewSoft(Options{})
	n.bin = "/nonexistent/notify-send"
	require.NoError(t, n.Notify(context.Background(), "t", "b", ""))

	hard := New(Options{})
	hard.bin = "/nonexistent/notify-send"
	require.Error(t, hard.Notify(context.Background(), "t", "b", ""))
}
