package secret

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-authgate/credgate/internal/logger"
	"github.com/go-authgate/credgate/internal/mocks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testAppEnv   = "CREDGATE_TEST_APP_PASSWORD"
	testAdminEnv = "CREDGATE_TEST_ADMIN_PASSWORD"
)

type fixture struct {
	appFile   string
	adminFile string
	resolver  *Resolver
	logBuf    *bytes.Buffer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv(testAppEnv, "")
	t.Setenv(testAdminEnv, "")

	dir := t.TempDir()
	f := &fixture{
		appFile:   filepath.Join(dir, "mqAppPassword"),
		adminFile: filepath.Join(dir, "mqAdminPassword"),
		logBuf:    &bytes.Buffer{},
	}
	log := logger.New()
	log.InitWriter(f.logBuf)
	f.resolver = NewResolver(map[Identity]Source{
		App:   {File: f.appFile, EnvVar: testAppEnv},
		Admin: {File: f.adminFile, EnvVar: testAdminEnv},
	}, log, nil)
	return f
}

func resolveString(t *testing.T, r *Resolver, id Identity) (string, bool) {
	t.Helper()
	s, ok := r.Resolve(id)
	if !ok {
		return "", false
	}
	defer s.Clear()
	return string(s.Bytes()), true
}

func TestResolve_FileTakesPrecedenceOverEnv(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.adminFile, []byte("password-admin-file\n"), 0o600))
	t.Setenv(testAdminEnv, "password-admin-env")

	got, ok := resolveString(t, f.resolver, Admin)
	require.True(t, ok)
	assert.Equal(t, "password-admin-file", got)
	assert.NotContains(t, f.logBuf.String(), "deprecated")
}

func TestResolve_EnvFallbackLogsDeprecation(t *testing.T) {
	f := newFixture(t)
	t.Setenv(testAdminEnv, "s3cret")

	got, ok := resolveString(t, f.resolver, Admin)
	require.True(t, ok)
	assert.Equal(t, "s3cret", got)
	assert.Contains(t, f.logBuf.String(), `"loglevel":"INFO"`)
	assert.Contains(t, f.logBuf.String(),
		"Environment variable "+testAdminEnv+" is deprecated, use secrets to set the passwords")
	assert.NotContains(t, f.logBuf.String(), "s3cret")
}

func TestResolve_EnvReadAtCallTime(t *testing.T) {
	f := newFixture(t)

	_, ok := resolveString(t, f.resolver, App)
	assert.False(t, ok)

	t.Setenv(testAppEnv, "first")
	got, _ := resolveString(t, f.resolver, App)
	assert.Equal(t, "first", got)

	t.Setenv(testAppEnv, "second")
	got, _ = resolveString(t, f.resolver, App)
	assert.Equal(t, "second", got)
}

func TestResolve_IdentitiesAreIndependent(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.appFile, []byte("app-secret"), 0o600))
	t.Setenv(testAdminEnv, "admin-secret")

	app, ok := resolveString(t, f.resolver, App)
	require.True(t, ok)
	admin, ok := resolveString(t, f.resolver, Admin)
	require.True(t, ok)

	assert.Equal(t, "app-secret", app)
	assert.Equal(t, "admin-secret", admin)
}

func TestResolve_NothingConfigured(t *testing.T) {
	f := newFixture(t)

	s, ok := f.resolver.Resolve(App)
	assert.False(t, ok)
	assert.Nil(t, s)

	s, ok = f.resolver.Resolve(Identity("mqm"))
	assert.False(t, ok)
	assert.Nil(t, s)
}

func TestResolve_FileContents(t *testing.T) {
	long := strings.Repeat("a", MaxPasswordLength) + strings.Repeat("b", 44)
	exact := strings.Repeat("c", MaxPasswordLength)

	tests := []struct {
		name    string
		content string
		want    string
		wantOK  bool
	}{
		{name: "plain", content: "secret", want: "secret", wantOK: true},
		{name: "LF", content: "secret\n", want: "secret", wantOK: true},
		{name: "CRLF", content: "secret\r\n", want: "secret", wantOK: true},
		{name: "first line only", content: "line1\nline2\n", want: "line1", wantOK: true},
		{name: "inner spaces kept", content: " spaced out \n", want: " spaced out ", wantOK: true},
		{name: "truncated", content: long + "\n", want: long[:MaxPasswordLength], wantOK: true},
		{name: "maximum length with CRLF", content: exact + "\r\n", want: exact, wantOK: true},
		{name: "empty file", content: "", wantOK: false},
		{name: "empty line", content: "\r\n", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			require.NoError(t, os.WriteFile(f.appFile, []byte(tt.content), 0o600))

			got, ok := resolveString(t, f.resolver, App)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolve_EmptyFileFallsBackToEnv(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(f.appFile, nil, 0o600))
	t.Setenv(testAppEnv, "from-env")

	got, ok := resolveString(t, f.resolver, App)
	require.True(t, ok)
	assert.Equal(t, "from-env", got)
}

func TestResolve_UnreadableFileFallsBackToEnv(t *testing.T) {
	f := newFixture(t)
	// A directory opens but cannot be read as a file.
	require.NoError(t, os.Mkdir(f.appFile, 0o700))
	t.Setenv(testAppEnv, "from-env")

	got, ok := resolveString(t, f.resolver, App)
	require.True(t, ok)
	assert.Equal(t, "from-env", got)
}

func TestResolve_EnvIsTruncated(t *testing.T) {
	f := newFixture(t)
	t.Setenv(testAppEnv, strings.Repeat("e", MaxPasswordLength+10))

	s, ok := f.resolver.Resolve(App)
	require.True(t, ok)
	defer s.Clear()
	assert.Equal(t, MaxPasswordLength, s.Len())
}

func TestResolve_RecordsSource(t *testing.T) {
	ctrl := gomock.NewController(t)
	rec := mocks.NewMockRecorder(ctrl)
	t.Setenv(testAdminEnv, "")

	dir := t.TempDir()
	appFile := filepath.Join(dir, "app")
	require.NoError(t, os.WriteFile(appFile, []byte("x"), 0o600))
	r := NewResolver(map[Identity]Source{
		App:   {File: appFile},
		Admin: {File: filepath.Join(dir, "missing"), EnvVar: testAdminEnv},
	}, nil, rec)

	gomock.InOrder(
		rec.EXPECT().RecordSecretSource("app", SourceFile),
		rec.EXPECT().RecordSecretSource("admin", SourceNone),
	)

	s, ok := r.Resolve(App)
	require.True(t, ok)
	s.Clear()
	_, ok = r.Resolve(Admin)
	require.False(t, ok)
}

func TestConfigured(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.resolver.Configured(App))
	assert.False(t, f.resolver.Configured(Admin))
	assert.False(t, f.resolver.Configured(Identity("other")))

	require.NoError(t, os.WriteFile(f.appFile, []byte("x"), 0o600))
	assert.True(t, f.resolver.Configured(App))

	t.Setenv(testAdminEnv, "   ")
	assert.False(t, f.resolver.Configured(Admin))
	t.Setenv(testAdminEnv, "set")
	assert.True(t, f.resolver.Configured(Admin))
}

func TestParseIdentity(t *testing.T) {
	tests := []struct {
		in   string
		want Identity
		ok   bool
	}{
		{in: "app", want: App, ok: true},
		{in: "admin", want: Admin, ok: true},
		{in: "Admin", ok: false},
		{in: "app ", ok: false},
		{in: "mqm", ok: false},
		{in: "", ok: false},
	}
	for _, tt := range tests {
		got, ok := ParseIdentity(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestDefaultSources(t *testing.T) {
	src := DefaultSources()
	assert.Equal(t, Source{File: "/run/secrets/mqAppPassword", EnvVar: "MQ_APP_PASSWORD"}, src[App])
	assert.Equal(t, Source{File: "/run/secrets/mqAdminPassword", EnvVar: "MQ_ADMIN_PASSWORD"}, src[Admin])
}
