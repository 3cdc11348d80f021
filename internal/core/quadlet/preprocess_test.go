package quadlet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// preprocessUnit parses, preprocesses, and re-serializes one file for app
// "myapp" with the given sibling base names.
func preprocessUnit(t *testing.T, fileName, content string, siblings ...string) string {
	t.Helper()
	unit, err := Parse(fileName, content)
	require.NoError(t, err)

	sibs := make(map[string]bool, len(siblings))
	for _, s := range siblings {
		sibs[s] = true
	}
	Preprocess(unit, "myapp", sibs, "/srv")
	return unit.String()
}

// =============================================================================
// Pass 1: Mount Path Substitution
// =============================================================================

func TestPreprocess_InitMountRewrite(t *testing.T) {
	out := preprocessUnit(t, "main.container", `[Container]
ContainerName=keep
Volume=init.d:/docker-entrypoint-initdb.d:ro,z
`)
	assert.Contains(t, out, "Volume=/srv/myapp/init/main:/docker-entrypoint-initdb.d:ro,z\n")
}

func TestPreprocess_ConfigMountRewriteWithSubpath(t *testing.T) {
	out := preprocessUnit(t, "web.container", `[Container]
ContainerName=keep
Volume=config.d/nginx:/etc/nginx/conf.d:ro
`)
	assert.Contains(t, out, "Volume=/srv/myapp/config/web/nginx:/etc/nginx/conf.d:ro\n")
}

func TestPreprocess_MountRewriteUsesOwningUnitName(t *testing.T) {
	out := preprocessUnit(t, "worker.container", `[Container]
ContainerName=keep
Volume=init.d:/seed
`)
	assert.Contains(t, out, "Volume=/srv/myapp/init/worker:/seed\n")
}

func TestPreprocess_TargetOnlyVolumeUntouched(t *testing.T) {
	// A single-component value is the container path, not a host source.
	out := preprocessUnit(t, "main.container", `[Container]
ContainerName=keep
Volume=/var/lib/scratch
`)
	assert.Contains(t, out, "Volume=/var/lib/scratch\n")
}

func TestPreprocess_SimilarlyNamedSourceUntouched(t *testing.T) {
	out := preprocessUnit(t, "main.container", `[Container]
ContainerName=keep
Volume=init.data:/x
`)
	assert.Contains(t, out, "Volume=init.data:/x\n")
}

// =============================================================================
// Pass 2: Resource Prefixing
// =============================================================================

func TestPreprocess_PrefixesVolumeSource(t *testing.T) {
	out := preprocessUnit(t, "main.container", `[Container]
ContainerName=keep
Volume=data.volume:/var/lib/data
`)
	assert.Contains(t, out, "Volume=myapp--data.volume:/var/lib/data\n")
}

func TestPreprocess_PrefixesNetworkAndPod(t *testing.T) {
	out := preprocessUnit(t, "main.container", `[Container]
ContainerName=keep
Network=backend.network
Pod=stack.pod
`)
	assert.Contains(t, out, "Network=myapp--backend.network\n")
	assert.Contains(t, out, "Pod=myapp--stack.pod\n")
}

func TestPreprocess_PrefixesDependencyDirectives(t *testing.T) {
	out := preprocessUnit(t, "main.container", `[Unit]
Wants=db.service
Requires=cache.service
After=db.service cache.service
[Container]
ContainerName=keep
`)
	assert.Contains(t, out, "Wants=myapp--db.service\n")
	assert.Contains(t, out, "Requires=myapp--cache.service\n")
	assert.Contains(t, out, "After=myapp--db.service myapp--cache.service\n")
}

func TestPreprocess_NeverDoublePrefixes(t *testing.T) {
	out := preprocessUnit(t, "main.container", `[Unit]
Wants=myapp--db.service
[Container]
ContainerName=keep
Volume=myapp--data.volume:/var/lib/data
`)
	assert.Contains(t, out, "Wants=myapp--db.service\n")
	assert.Contains(t, out, "Volume=myapp--data.volume:/var/lib/data\n")
	assert.NotContains(t, out, "myapp--myapp--")
}

func TestPreprocess_SecondRunIsIdempotent(t *testing.T) {
	src := `[Unit]
Wants=db.service
[Container]
Volume=data.volume:/var/lib/data
Volume=init.d:/seed
Network=backend
`
	first := preprocessUnit(t, "main.container", src, "backend", "data")
	second := preprocessUnit(t, "main.container", first, "backend", "data")
	assert.Equal(t, first, second)
}

func TestPreprocess_AbsolutePathsUntouched(t *testing.T) {
	out := preprocessUnit(t, "main.container", `[Container]
ContainerName=keep
Volume=/srv/data:/data
Network=/run/netns/custom
`)
	assert.Contains(t, out, "Volume=/srv/data:/data\n")
	assert.Contains(t, out, "Network=/run/netns/custom\n")
}

func TestPreprocess_BareSiblingTokenPrefixed(t *testing.T) {
	// backend.network is a sibling, so the bare name resolves to the
	// runtime object the injected NetworkName will create.
	out := preprocessUnit(t, "main.container", `[Container]
ContainerName=keep
Network=backend
`, "backend")
	assert.Contains(t, out, "Network=myapp--backend\n")
}

func TestPreprocess_BareForeignTokenUntouched(t *testing.T) {
	out := preprocessUnit(t, "main.container", `[Container]
ContainerName=keep
Network=host
`, "backend")
	assert.Contains(t, out, "Network=host\n")
}

func TestPreprocess_TokenTailPreserved(t *testing.T) {
	out := preprocessUnit(t, "main.container", `[Container]
ContainerName=keep
Network=backend.network:ip=10.89.0.5
`)
	assert.Contains(t, out, "Network=myapp--backend.network:ip=10.89.0.5\n")
}

func TestPreprocess_UnrelatedDirectivesUntouched(t *testing.T) {
	out := preprocessUnit(t, "main.container", `[Container]
ContainerName=keep
Image=registry.example.com/app.container
Environment=SERVICE=db.service
`)
	assert.Contains(t, out, "Image=registry.example.com/app.container\n")
	assert.Contains(t, out, "Environment=SERVICE=db.service\n")
}

func TestPreprocess_SubstitutedMountNotPrefixed(t *testing.T) {
	// Pass order: path substitution runs first, so the rewritten absolute
	// source is no longer eligible for prefixing.
	out := preprocessUnit(t, "main.container", `[Container]
ContainerName=keep
Volume=init.d:/seed
`)
	assert.Contains(t, out, "Volume=/srv/myapp/init/main:/seed\n")
	assert.NotContains(t, out, "myapp--/srv")
}

// =============================================================================
// Pass 3: Default Name Injection
// =============================================================================

func TestPreprocess_InjectsContainerName(t *testing.T) {
	unit, err := Parse("db.container", `[Unit]
Description=db
[Container]
Image=postgres:16
`)
	require.NoError(t, err)
	Preprocess(unit, "myapp", nil, "/srv")

	sec := unit.Section("Container")
	require.NotNil(t, sec)
	assert.Equal(t, "ContainerName", sec.Entries[0].Key)
	assert.Equal(t, "myapp--db", sec.Entries[0].Value)
}

func TestPreprocess_ExplicitNameWins(t *testing.T) {
	out := preprocessUnit(t, "db.container", `[Container]
ContainerName=custom
Image=postgres:16
`)
	assert.Contains(t, out, "ContainerName=custom\n")
	assert.NotContains(t, out, "ContainerName=myapp--db")
}

func TestPreprocess_InjectsForEveryNamedKind(t *testing.T) {
	tests := []struct {
		fileName string
		section  string
		want     string
	}{
		{"data.volume", "Volume", "VolumeName=myapp--data"},
		{"backend.network", "Network", "NetworkName=myapp--backend"},
		{"stack.pod", "Pod", "PodName=myapp--stack"},
	}
	for _, tt := range tests {
		out := preprocessUnit(t, tt.fileName, "["+tt.section+"]\n")
		assert.Contains(t, out, tt.want+"\n", tt.fileName)
	}
}

func TestPreprocess_KubeGetsNoInjection(t *testing.T) {
	out := preprocessUnit(t, "app.kube", `[Kube]
Yaml=app.yaml
`)
	assert.NotContains(t, out, "Name=")
}

func TestPreprocess_MissingPrimarySectionNoInjection(t *testing.T) {
	out := preprocessUnit(t, "db.container", `[Unit]
Description=no container section yet
`)
	assert.NotContains(t, out, "ContainerName=")
}
