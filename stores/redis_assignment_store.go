package stores

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/oarkflow/guardian"
)

// RedisAssignmentStore keeps user-role bindings in Redis hashes
// (key: assign:{tenantID}:{userID}, field: roleID, value: JSON assignment).
type RedisAssignmentStore struct {
	client *redis.Client
	keyFmt string // format string, e.g. "assign:%s:%s"
}

func NewRedisAssignmentStore(client *redis.Client) *RedisAssignmentStore {
	return &RedisAssignmentStore{client: client, keyFmt: "assign:%s:%s"}
}

func (r *RedisAssignmentStore) key(tenantID, userID string) string {
	return fmt.Sprintf(r.keyFmt, tenantID, userID)
}

func (r *RedisAssignmentStore) AssignRole(ctx context.Context, a *guardian.RoleAssignment) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, r.key(a.TenantID, a.UserID), a.RoleID, payload).Err()
}

func (r *RedisAssignmentStore) RevokeRole(ctx context.Context, userID, roleID, tenantID string) error {
	n, err := r.client.HDel(ctx, r.key(tenantID, userID), roleID).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("assignment not found: %s/%s/%s", userID, roleID, tenantID)
	}
	return nil
}

func (r *RedisAssignmentStore) ListAssignments(ctx context.Context, userID, tenantID string) ([]*guardian.RoleAssignment, error) {
	fields, err := r.client.HGetAll(ctx, r.key(tenantID, userID)).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*guardian.RoleAssignment, 0, len(fields))
	for _, raw := range fields {
		var a guardian.RoleAssignment
		if err := json.Unmarshal([]byte(raw), &a); err != nil {
			continue
		}
		out = append(out, &a)
	}
	return out, nil
}
