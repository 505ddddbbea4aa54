package environment

import (
	"bytes"
	"testing"

	"filippo.io/age"
	"github.com/stretchr/testify/require"

	"uxy/internal/testutil"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr error
		token   string
	}{
		{
			name:    "token set",
			content: "[FACEBOOK]\nFB_PAGE_TOKEN = abc123\nFB_VERIFY_TOKEN = v\n",
			token:   "abc123",
		},
		{
			name:    "empty token",
			content: "[FACEBOOK]\nFB_PAGE_TOKEN =\n",
			wantErr: ErrCredentialInvalid,
		},
		{
			name:    "missing section",
			content: "[OTHER]\nKEY = x\n",
			wantErr: ErrLoad,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			project := testutil.NewProject(t)
			project.WriteFile(DefaultPath, tt.content)

			env, err := Load(project.Root, Options{})
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.token, env.PageToken)
			require.Equal(t, "v", env.Values["FACEBOOK.FB_VERIFY_TOKEN"])
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	project := testutil.NewProject(t)

	_, err := Load(project.Root, Options{})
	require.ErrorIs(t, err, ErrLoad)
}

func TestLoadEncrypted(t *testing.T) {
	identity, err := age.GenerateX25519Identity()
	require.NoError(t, err)

	var sealed bytes.Buffer
	writer, err := age.Encrypt(&sealed, identity.Recipient())
	require.NoError(t, err)
	_, err = writer.Write([]byte("[FACEBOOK]\nFB_PAGE_TOKEN = sealed-token\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	project := testutil.NewProject(t)
	project.WriteFile(DefaultPath+".age", sealed.String())

	_, err = Load(project.Root, Options{})
	require.ErrorIs(t, err, ErrLoad)

	env, err := Load(project.Root, Options{AgeIdentity: identity.String()})
	require.NoError(t, err)
	require.Equal(t, "sealed-token", env.PageToken)
}
