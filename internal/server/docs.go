package server

import (
	"sort"
	"strings"

	"github.com/eternalApril/objectdb/internal/resp"
)

type commandMetadata struct {
	arity    int      // Arity includes the command name itself; negative means at least -arity
	flags    []string // read, write, fast, denyoom, etc
	firstKey int      // 1-based index of the first key
	lastKey  int      // 1-based index of the last key
	step     int      // Step count for finding keys
}

// acceptsArgs checks an argument count, command name excluded, against the arity
func (m commandMetadata) acceptsArgs(n int) bool {
	if m.arity >= 0 {
		return n+1 == m.arity
	}
	return n+1 >= -m.arity
}

var (
	readFast      = []string{"readonly", "fast"}
	read          = []string{"readonly"}
	write         = []string{"write"}
	writeFast     = []string{"write", "fast"}
	writeGrow     = []string{"write", "denyoom"}
	writeGrowFast = []string{"write", "denyoom", "fast"}

	commandRegistry = map[string]commandMetadata{
		"PING":    {-1, []string{"fast", "stale"}, 0, 0, 0},
		"COMMAND": {-1, []string{"random", "loading", "stale"}, 0, 0, 0},
		"SAVE":    {1, []string{"admin", "noscript"}, 0, 0, 0},
		"BGSAVE":  {1, []string{"admin", "noscript"}, 0, 0, 0},

		"GET":  {2, readFast, 1, 1, 1},
		"SET":  {-3, writeGrow, 1, 1, 1},
		"INCR": {2, writeGrowFast, 1, 1, 1},

		"DEL":       {-2, write, 1, -1, 1},
		"EXISTS":    {-2, readFast, 1, -1, 1},
		"RENAME":    {3, write, 1, 2, 1},
		"TYPE":      {2, readFast, 1, 1, 1},
		"EXPIRE":    {3, writeFast, 1, 1, 1},
		"PEXPIRE":   {3, writeFast, 1, 1, 1},
		"EXPIREAT":  {3, writeFast, 1, 1, 1},
		"PEXPIREAT": {3, writeFast, 1, 1, 1},
		"TTL":       {2, readFast, 1, 1, 1},
		"PTTL":      {2, readFast, 1, 1, 1},
		"PERSIST":   {2, writeFast, 1, 1, 1},
		"FLUSHDB":   {1, write, 0, 0, 0},
		"FLUSHALL":  {1, write, 0, 0, 0},

		"HSET":    {-4, writeGrowFast, 1, 1, 1},
		"HGET":    {3, readFast, 1, 1, 1},
		"HGETALL": {2, read, 1, 1, 1},
		"HDEL":    {-3, writeFast, 1, 1, 1},
		"HEXISTS": {3, readFast, 1, 1, 1},
		"HINCRBY": {4, writeGrowFast, 1, 1, 1},

		"SADD":      {-3, writeGrowFast, 1, 1, 1},
		"SREM":      {-3, writeFast, 1, 1, 1},
		"SISMEMBER": {3, readFast, 1, 1, 1},
		"SMEMBERS":  {2, read, 1, 1, 1},
		"SCARD":     {2, readFast, 1, 1, 1},

		"LPUSH":  {-3, writeGrowFast, 1, 1, 1},
		"RPUSH":  {-3, writeGrowFast, 1, 1, 1},
		"RPOP":   {2, writeFast, 1, 1, 1},
		"LRANGE": {4, read, 1, 1, 1},
		"LREM":   {4, write, 1, 1, 1},
		"LLEN":   {2, readFast, 1, 1, 1},

		"ZADD":      {-4, writeGrowFast, 1, 1, 1},
		"ZREM":      {-3, writeFast, 1, 1, 1},
		"ZSCORE":    {3, readFast, 1, 1, 1},
		"ZINCRBY":   {4, writeGrowFast, 1, 1, 1},
		"ZRANGE":    {-4, read, 1, 1, 1},
		"ZREVRANGE": {-4, read, 1, 1, 1},
		"ZCARD":     {2, readFast, 1, 1, 1},
	}
)

// commandDoc stores a description for the command
type commandDoc struct {
	summary    string
	complexity string
	group      string
	since      string
}

func describe(group, summary, complexity string) commandDoc {
	return commandDoc{summary: summary, complexity: complexity, group: group, since: "1.0.0"}
}

// commandDocsRegistry documentation registry
var commandDocsRegistry = map[string]commandDoc{
	"PING":    describe("connection", "Ping the server.", "O(1)"),
	"COMMAND": describe("server", "Get array of command details.", "O(N) where N is the number of commands to look up."),
	"SAVE":    describe("server", "Synchronously save the dataset to disk.", "O(N) where N is the total number of records."),
	"BGSAVE":  describe("server", "Asynchronously save the dataset to disk.", "O(1) to start, O(N) in the background."),

	"GET":  describe("string", "Get the value of a key.", "O(1)"),
	"SET":  describe("string", "Set the value of a key, optionally with an expiration.", "O(1)"),
	"INCR": describe("string", "Increment the integer value of a key by one.", "O(1)"),

	"DEL":       describe("generic", "Delete keys.", "O(N) where N is the number of keys that will be removed."),
	"EXISTS":    describe("generic", "Determine how many of the given keys exist.", "O(N) where N is the number of keys to check."),
	"RENAME":    describe("generic", "Rename a key.", "O(M) where M is the number of records of the key."),
	"TYPE":      describe("generic", "Determine the type stored at key.", "O(1)"),
	"EXPIRE":    describe("generic", "Set a key's time to live in seconds.", "O(1)"),
	"PEXPIRE":   describe("generic", "Set a key's time to live in milliseconds.", "O(1)"),
	"EXPIREAT":  describe("generic", "Set the expiration for a key as a UNIX timestamp.", "O(1)"),
	"PEXPIREAT": describe("generic", "Set the expiration for a key as a UNIX timestamp specified in milliseconds.", "O(1)"),
	"TTL":       describe("generic", "Get the time to live for a key in seconds.", "O(1)"),
	"PTTL":      describe("generic", "Get the time to live for a key in milliseconds.", "O(1)"),
	"PERSIST":   describe("generic", "Remove the expiration from a key.", "O(1)"),
	"FLUSHDB":   describe("server", "Remove all keys and reset the object cache.", "O(N) where N is the total number of records."),
	"FLUSHALL":  describe("server", "Drop the whole underlying store.", "O(N) where N is the total number of records."),

	"HSET":    describe("hash", "Set the value of one or more hash fields.", "O(N) where N is the number of fields being set."),
	"HGET":    describe("hash", "Get the value of a hash field.", "O(1)"),
	"HGETALL": describe("hash", "Get all the fields and values in a hash.", "O(N) where N is the size of the hash."),
	"HDEL":    describe("hash", "Delete one or more hash fields.", "O(N) where N is the number of fields to be removed."),
	"HEXISTS": describe("hash", "Determine if a hash field exists.", "O(1)"),
	"HINCRBY": describe("hash", "Increment the integer value of a hash field by the given number.", "O(1)"),

	"SADD":      describe("set", "Add one or more members to a set.", "O(N) where N is the number of members to be added."),
	"SREM":      describe("set", "Remove one or more members from a set.", "O(N) where N is the number of members to be removed."),
	"SISMEMBER": describe("set", "Determine if a given value is a member of a set.", "O(N) where N is the set cardinality."),
	"SMEMBERS":  describe("set", "Get all the members in a set.", "O(N) where N is the set cardinality."),
	"SCARD":     describe("set", "Get the number of members in a set.", "O(N) where N is the set cardinality."),

	"LPUSH":  describe("list", "Prepend one or multiple elements to a list.", "O(N) where N is the number of elements pushed."),
	"RPUSH":  describe("list", "Append one or multiple elements to a list.", "O(N) where N is the number of elements pushed."),
	"RPOP":   describe("list", "Remove and get the last element of a list.", "O(1)"),
	"LRANGE": describe("list", "Get a range of elements from a list.", "O(N) where N is the list length."),
	"LREM":   describe("list", "Remove every occurrence of an element from a list.", "O(N) where N is the list length."),
	"LLEN":   describe("list", "Get the length of a list.", "O(1)"),

	"ZADD":      describe("sorted-set", "Add one or more members to a sorted set, or update their scores.", "O(N) where N is the number of members added."),
	"ZREM":      describe("sorted-set", "Remove one or more members from a sorted set.", "O(N) where N is the number of members removed."),
	"ZSCORE":    describe("sorted-set", "Get the score associated with the given member in a sorted set.", "O(1)"),
	"ZINCRBY":   describe("sorted-set", "Increment the score of a member in a sorted set.", "O(1)"),
	"ZRANGE":    describe("sorted-set", "Return a range of members in a sorted set, by index.", "O(log(N)+M) with M the number of elements returned."),
	"ZREVRANGE": describe("sorted-set", "Return a range of members in a sorted set, by index, with scores ordered from high to low.", "O(log(N)+M) with M the number of elements returned."),
	"ZCARD":     describe("sorted-set", "Get the number of members in a sorted set.", "O(N) where N is the sorted set cardinality."),
}

func makeFlagsArray(flags []string) resp.Value {
	vals := make([]resp.Value, len(flags))
	for i, f := range flags {
		vals[i] = resp.MakeSimpleString(f)
	}
	return resp.MakeArray(vals)
}

func makeInfoCmdArray(name string) []resp.Value {
	meta := commandRegistry[name]
	return []resp.Value{
		resp.MakeBulkString(strings.ToLower(name)),
		resp.MakeInteger(int64(meta.arity)),
		makeFlagsArray(meta.flags),
		resp.MakeInteger(int64(meta.firstKey)),
		resp.MakeInteger(int64(meta.lastKey)),
		resp.MakeInteger(int64(meta.step)),
	}
}

func sortedNames[V any](registry map[string]V) []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func getAllCommands() resp.Value {
	cmdArray := make([]resp.Value, 0, len(commandRegistry))
	for _, name := range sortedNames(commandRegistry) {
		cmdArray = append(cmdArray, resp.MakeArray(makeInfoCmdArray(name)))
	}
	return resp.MakeArray(cmdArray)
}

// getCommandsDocs returns documentation for specified commands or all commands
// Format: [Name, [Summary, val, Since, val...], Name, [...]]
func getCommandsDocs(args []resp.Value) resp.Value {
	var targets []string

	if len(args) == 0 {
		targets = sortedNames(commandDocsRegistry)
	} else {
		targets = make([]string, 0, len(args))
		for _, arg := range args {
			targets = append(targets, strings.ToUpper(string(arg.String)))
		}
	}

	result := make([]resp.Value, 0, len(targets)*2)

	for _, name := range targets {
		doc, ok := commandDocsRegistry[name]
		if !ok {
			continue
		}

		result = append(result, resp.MakeBulkString(strings.ToLower(name)))

		props := []resp.Value{
			resp.MakeBulkString("summary"),
			resp.MakeBulkString(doc.summary),
			resp.MakeBulkString("since"),
			resp.MakeBulkString(doc.since),
			resp.MakeBulkString("group"),
			resp.MakeBulkString(doc.group),
			resp.MakeBulkString("complexity"),
			resp.MakeBulkString(doc.complexity),
		}

		result = append(result, resp.MakeArray(props))
	}

	return resp.MakeArray(result)
}
