package archive

import (
	"fmt"
	"regexp"

	"github.com/mahaj/chatter-box/pkg/db"
)

// Tables lists the archive tables in creation order.
var Tables = []string{"messages", "user_conversations", "conversation_counters"}

var tableDDL = []string{
	`CREATE TABLE IF NOT EXISTS messages (
		channel_id text,
		id bigint,
		sender_id text,
		receiver_id text,
		room_id text,
		text text,
		image text,
		created_at timestamp,
		PRIMARY KEY (channel_id, id)
	) WITH CLUSTERING ORDER BY (id DESC)`,
	`CREATE TABLE IF NOT EXISTS user_conversations (
		user_id text,
		other_user_id text,
		last_updated timestamp,
		PRIMARY KEY (user_id, other_user_id)
	)`,
	`CREATE TABLE IF NOT EXISTS conversation_counters (
		user_id text,
		other_user_id text,
		unread_count counter,
		PRIMARY KEY (user_id, other_user_id)
	)`,
}

var keyspaceName = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{0,47}$`)

// KeyspaceDDL returns the CREATE KEYSPACE statement for keyspace.
func KeyspaceDDL(keyspace string) (string, error) {
	if !keyspaceName.MatchString(keyspace) {
		return "", fmt.Errorf("invalid keyspace name %q", keyspace)
	}
	return fmt.Sprintf(`CREATE KEYSPACE IF NOT EXISTS %s WITH REPLICATION = { 'class' : 'SimpleStrategy', 'replication_factor' : 1 }`, keyspace), nil
}

// EnsureSchema creates the keyspace and the archive tables if missing.
func EnsureSchema(hosts []string, keyspace string) error {
	ddl, err := KeyspaceDDL(keyspace)
	if err != nil {
		return err
	}

	sys, err := db.NewSession(hosts, "system")
	if err != nil {
		return err
	}
	err = sys.Query(ddl).Exec()
	sys.Close()
	if err != nil {
		return fmt.Errorf("create keyspace %s: %w", keyspace, err)
	}

	session, err := db.NewSession(hosts, keyspace)
	if err != nil {
		return err
	}
	defer session.Close()

	for i, stmt := range tableDDL {
		if err := session.Query(stmt).Exec(); err != nil {
			return fmt.Errorf("create table %s: %w", Tables[i], err)
		}
	}
	return nil
}

// DropTables drops every archive table in keyspace.
func DropTables(session *db.Session) error {
	for _, table := range Tables {
		if err := session.Query("DROP TABLE IF EXISTS " + table).Exec(); err != nil {
			return fmt.Errorf("drop table %s: %w", table, err)
		}
	}
	return nil
}
