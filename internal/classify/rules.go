// Package classify decides, from names alone, whether a call leaves the
// traceable code (network, persistence, queue, messaging, filesystem) and
// whether it mutates data.
//
// Classification is a pure function over ordered rule tables. The tables are
// built once and never modified, so a Classifier is safe for concurrent use.
package classify

import (
	"fmt"
	"regexp"
	"strings"
)

// Category groups rules in a table.
type Category string

const (
	CategoryNetwork     Category = "network"
	CategoryPersistence Category = "persistence"
	CategoryQueue       Category = "queue"
	CategoryMessaging   Category = "messaging"
	CategoryFilesystem  Category = "filesystem"
	CategoryMutation    Category = "mutation"
	CategoryCustom      Category = "custom"
)

// Rule is one named pattern of a rule table.
type Rule struct {
	Name     string
	Category Category
	Pattern  *regexp.Regexp
}

// Match reports whether any of the given subjects matches the rule.
func (r Rule) Match(subjects ...string) bool {
	for _, s := range subjects {
		if s != "" && r.Pattern.MatchString(s) {
			return true
		}
	}
	return false
}

// Table is an ordered list of rules; the first matching rule wins.
type Table []Rule

// First returns the first rule matching any subject.
func (t Table) First(subjects ...string) (Rule, bool) {
	for _, r := range t {
		if r.Match(subjects...) {
			return r, true
		}
	}
	return Rule{}, false
}

// Extend returns a new table with extra rules appended.
func (t Table) Extend(extra ...Rule) Table {
	out := make(Table, 0, len(t)+len(extra))
	out = append(out, t...)
	return append(out, extra...)
}

// NewRule compiles a rule from a regular expression.
func NewRule(name string, category Category, pattern string) (Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("rule %s: %w", name, err)
	}
	if category == "" {
		category = CategoryCustom
	}
	return Rule{Name: name, Category: category, Pattern: re}, nil
}

// WordRule builds a rule that matches any of words as a whole identifier word.
//
// A word matches at the start of the subject or after a non-letter in its
// lower-case form (fetch, db.query, lib/http-client), or anywhere in its
// capitalized camelCase form (sendEmail, bulkCreate). It must be followed by
// something that is not a lower-case letter, so "add" does not match "address"
// and "set" does not match "reset".
func WordRule(name string, category Category, words ...string) Rule {
	alts := make([]string, 0, len(words)*2)
	for _, w := range words {
		alts = append(alts, `(?:^|[^a-zA-Z])`+regexp.QuoteMeta(w))
		alts = append(alts, regexp.QuoteMeta(capitalize(w)))
	}
	pattern := `(?:` + strings.Join(alts, `|`) + `)(?:[^a-z]|$)`
	return Rule{Name: name, Category: category, Pattern: regexp.MustCompile(pattern)}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// DefaultExternalRules is the built-in external-I/O table, in evaluation order.
func DefaultExternalRules() Table {
	return Table{
		WordRule("network", CategoryNetwork,
			"fetch", "axios", "http", "https", "request", "got", "superagent", "graphql", "grpc", "webhook"),
		WordRule("persistence", CategoryPersistence,
			"prisma", "db", "database", "query", "sql", "knex", "sequelize", "typeorm", "drizzle", "mongoose", "mongo",
			"redis", "supabase", "nocodb", "airtable", "findMany", "findUnique", "findFirst", "findOne", "findById",
			"aggregate", "transaction", "collection"),
		WordRule("queue", CategoryQueue,
			"queue", "enqueue", "dequeue", "bull", "bullmq", "kafka", "sqs", "amqp", "rabbit", "pubsub", "publish"),
		WordRule("messaging", CategoryMessaging,
			"resend", "send", "email", "mail", "mailer", "nodemailer", "sendgrid", "notify", "slack", "sms", "twilio"),
		WordRule("filesystem", CategoryFilesystem,
			"fs", "readFile", "writeFile", "appendFile", "readdir", "mkdir", "unlink", "rmdir",
			"createReadStream", "createWriteStream", "copyFile"),
	}
}

// DefaultMutationRules is the built-in data-mutation table, in evaluation order.
func DefaultMutationRules() Table {
	return Table{
		WordRule("persist", CategoryMutation,
			"create", "update", "delete", "save", "insert", "upsert", "destroy", "persist", "store", "del", "drop"),
		WordRule("assign", CategoryMutation,
			"set", "write", "modify", "change", "mutate", "assign", "replace", "reset", "clear", "patch", "put"),
		WordRule("collection", CategoryMutation,
			"add", "remove", "push", "pop", "shift", "unshift", "splice", "append", "increment", "decrement"),
	}
}
