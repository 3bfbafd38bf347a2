package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"PrivChat/module/user/model"
	"PrivChat/tools/errs"
)

// fakeResolver records whether it ran and answers from a canned table.
type fakeResolver struct {
	name  string
	users map[string]*model.User
	log   *[]string
}

func (f *fakeResolver) Resolve(_ context.Context, id string) (*model.User, error) {
	*f.log = append(*f.log, f.name)
	return f.users[id], nil
}

func TestResolvePriorityOrder(t *testing.T) {
	shared := &model.User{Email: "both@example.com"}
	var log []string

	// The same identifier matches in two strategies; the earlier one must win.
	first := &fakeResolver{name: "key", users: map[string]*model.User{"x": shared}, log: &log}
	second := &fakeResolver{name: "nickname", users: map[string]*model.User{"x": {Email: "later@example.com"}}, log: &log}

	d := NewDirectoryWithStrategies([]Resolver{first, second})

	u, err := d.Resolve(context.Background(), "x")
	require.NoError(t, err)
	assert.Equal(t, "both@example.com", u.Email)
	assert.Equal(t, []string{"key"}, log, "resolution must stop at the first hit")
}

func TestResolveFallsThroughAllStrategies(t *testing.T) {
	var log []string
	want := &model.User{Email: "mail@example.com"}

	d := NewDirectoryWithStrategies([]Resolver{
		&fakeResolver{name: "key", users: map[string]*model.User{}, log: &log},
		&fakeResolver{name: "nickname", users: map[string]*model.User{}, log: &log},
		&fakeResolver{name: "nickname-as-key", users: map[string]*model.User{}, log: &log},
		&fakeResolver{name: "email", users: map[string]*model.User{"mail@example.com": want}, log: &log},
	})

	u, err := d.Resolve(context.Background(), "mail@example.com")
	require.NoError(t, err)
	assert.Same(t, want, u)
	assert.Equal(t, []string{"key", "nickname", "nickname-as-key", "email"}, log)
}

func TestResolveNotFound(t *testing.T) {
	var log []string
	d := NewDirectoryWithStrategies([]Resolver{
		&fakeResolver{name: "key", users: map[string]*model.User{}, log: &log},
	})

	_, err := d.Resolve(context.Background(), "nobody")
	require.Error(t, err)
	assert.True(t, errs.ErrUserNotFound.Is(err))
}

func TestResolveEmptyIdentifier(t *testing.T) {
	d := NewDirectoryWithStrategies(nil)

	_, err := d.Resolve(context.Background(), "")
	require.Error(t, err)
	assert.True(t, errs.ErrUserNotFound.Is(err))
}
