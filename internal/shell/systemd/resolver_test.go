package systemd

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/quadapp/internal/core/graph"
)

func showKey(unit string) string {
	return "systemctl show -p Requires -p Wants -p Requisite -p BindsTo -p Upholds -p After " + unit
}

func TestResolveRestartOrder_DependenciesFirstMainLast(t *testing.T) {
	runner := &fakeRunner{out: map[string]runnerResult{
		showKey("shop--main.service"): {stdout: "Requires=shop--a.service shop--b.service basic.target\nAfter=network-online.target\n"},
		showKey("shop--b.service"):    {stdout: "Requires=shop--c.service\nAfter=shop--c.service\n"},
	}}

	order, err := ResolveRestartOrder(context.Background(), testClient(runner), "shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"shop--c.service", "shop--b.service", "shop--a.service", "shop--main.service"}, order)
}

func TestResolveRestartOrder_MainAlone(t *testing.T) {
	runner := &fakeRunner{}

	order, err := ResolveRestartOrder(context.Background(), testClient(runner), "shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"shop--main.service"}, order)
}

func TestResolveRestartOrder_ForeignUnitsExcluded(t *testing.T) {
	runner := &fakeRunner{out: map[string]runnerResult{
		showKey("shop--main.service"): {stdout: "Requires=shop--db.service blog--db.service dbus.socket\nAfter=sysinit.target\n"},
	}}

	order, err := ResolveRestartOrder(context.Background(), testClient(runner), "shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"shop--db.service", "shop--main.service"}, order)
}

func TestResolveRestartOrder_GeneratedResourceServices(t *testing.T) {
	// Volume and network units surface as generated -volume/-network services.
	runner := &fakeRunner{out: map[string]runnerResult{
		showKey("shop--main.service"): {stdout: "Requires=shop--data-volume.service\nAfter=shop--backend-network.service\n"},
	}}

	order, err := ResolveRestartOrder(context.Background(), testClient(runner), "shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"shop--data-volume.service", "shop--backend-network.service", "shop--main.service"}, order)
}

func TestResolveRestartOrder_CycleIsFatal(t *testing.T) {
	runner := &fakeRunner{out: map[string]runnerResult{
		showKey("shop--main.service"): {stdout: "Requires=shop--a.service\n"},
		showKey("shop--a.service"):    {stdout: "Requires=shop--b.service\n"},
		showKey("shop--b.service"):    {stdout: "After=shop--a.service\n"},
	}}

	order, err := ResolveRestartOrder(context.Background(), testClient(runner), "shop")
	require.Error(t, err)
	assert.Nil(t, order)
	assert.ErrorIs(t, err, graph.ErrDependencyCycle)

	var depErr *graph.DependencyError
	require.ErrorAs(t, err, &depErr)
	assert.NotEmpty(t, depErr.Cycle)
}
