package ethtool

import (
	"context"
	"errors"
	"io"
	"testing"

	"netconfd/internal/infrastructure/config"
	"netconfd/internal/nettest"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestTool(t *testing.T) {
	tests := []struct {
		name string
		run  func(context.Context, *Tool)
		want []string
	}{
		{
			name: "link settings",
			run: func(ctx context.Context, tool *Tool) {
				tool.SetOptions(ctx, "eth0", []Option{{"speed", "1000"}, {"duplex", "full"}, {"autoneg", "off"}})
			},
			want: []string{"ethtool -s eth0 speed 1000 duplex full autoneg off"},
		},
		{
			name: "offload settings",
			run: func(ctx context.Context, tool *Tool) {
				tool.SetOffload(ctx, "eth0", []Option{{"gro", "off"}})
			},
			want: []string{"ethtool -K eth0 gro off"},
		},
		{
			name: "no options is a no-op",
			run: func(ctx context.Context, tool *Tool) {
				tool.SetOptions(ctx, "eth0", nil)
				tool.SetOffload(ctx, "eth0", []Option{})
			},
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := logrus.New()
			logger.SetOutput(io.Discard)
			fexec := nettest.NewFakeExec()
			tool := NewTool(fexec, config.Default(), logger)

			tt.run(context.Background(), tool)
			assert.Equal(t, tt.want, fexec.Executed())
		})
	}
}

func TestTool_FailureIsAdvisory(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	fexec := nettest.NewFakeExec()
	fexec.AddFakeCmd(&nettest.ExpectedCmd{Cmd: "ethtool -K eth0 tso off", Err: errors.New("Operation not supported")})
	tool := NewTool(fexec, config.Default(), logger)

	assert.NotPanics(t, func() {
		tool.SetOffload(context.Background(), "eth0", []Option{{"tso", "off"}})
	})

	calls := fexec.Calls()
	if assert.Len(t, calls, 1) {
		assert.Equal(t, config.Default().Timeouts.Probe, calls[0].Options.Timeout)
	}
}
