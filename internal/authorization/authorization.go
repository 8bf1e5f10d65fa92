// Package authorization decides which API key roles may call which
// resources, using casbin with policies persisted through gorm.
package authorization

import (
	"fmt"
	"sync"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	ActionRead  = "read"
	ActionWrite = "write"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && (p.act == "*" || r.act == p.act)
`

// DefaultPolicies lets admins do everything and members read everything
// plus create orders and quotes.
var DefaultPolicies = [][]string{
	{"admin", "*", "*"},
	{"member", "*", ActionRead},
	{"member", "orders", ActionWrite},
	{"member", "pricing", ActionWrite},
}

type Authorizer struct {
	mu       sync.RWMutex
	enforcer *casbin.Enforcer
	log      *zap.Logger
}

// New loads policies from the casbin_rule table, seeding the defaults.
func New(db *gorm.DB, log *zap.Logger) (*Authorizer, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("load rbac model: %w", err)
	}
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("casbin adapter: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("casbin enforcer: %w", err)
	}
	if _, err := enforcer.AddPoliciesEx(DefaultPolicies); err != nil {
		return nil, fmt.Errorf("seed policies: %w", err)
	}
	return &Authorizer{enforcer: enforcer, log: log.Named("authorization")}, nil
}

func (a *Authorizer) Allow(role, resource, action string) (bool, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	ok, err := a.enforcer.Enforce(role, resource, action)
	if err != nil {
		return false, err
	}
	if !ok {
		a.log.Debug("access denied",
			zap.String("role", role),
			zap.String("resource", resource),
			zap.String("action", action))
	}
	return ok, nil
}

// Reload picks up policy rows changed outside this process.
func (a *Authorizer) Reload() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.enforcer.LoadPolicy()
}
