// Package x stores utility functions and the shared data types, mostly for
// internal usage.
package x

import (
	"bytes"
	"math/rand"
	"sync"
	"time"

	"github.com/iancoleman/strcase"
	"github.com/sirupsen/logrus"
)

var log = Log("x")

// Create and seed the generator.
// Typically a non-fixed seed should be used, such as time.Now().UnixNano().
// Using a fixed seed will produce the same output on every run.
var (
	rmu sync.Mutex
	r   = rand.New(rand.NewSource(time.Now().UnixNano()))
)

// Entity identifies any persisted record by its kind and id.
type Entity struct {
	Kind string `json:"kind"`
	Id   string `json:"id"`
}

func (e Entity) String() string {
	return e.Kind + ":" + e.Id
}

// Record is the latest state of an entity, as held by the data store.
type Record struct {
	Kind   string                 `json:"kind"`
	Id     string                 `json:"id"`
	Values map[string]interface{} `json:"values,omitempty"`
	NanoTs int64                  `json:"nano_ts"`
	Source string                 `json:"source,omitempty"`
}

// Entity returns the identity of the record.
func (rec Record) Entity() Entity {
	return Entity{Kind: rec.Kind, Id: rec.Id}
}

// String returns the value stored under field, converted to a string.
// Missing and nil values return false.
func (rec Record) String(field string) (string, bool) {
	val, ok := rec.Values[field]
	if !ok || val == nil {
		return "", false
	}
	return Stringify(val), true
}

// Doc is the format data gets stored in search engine. A Doc is always
// written whole, replacing any previous version.
type Doc struct {
	Kind   string                 `json:"kind"`
	Id     string                 `json:"id"`
	Data   map[string]interface{} `json:"data"`
	NanoTs int64                  `json:"nano_ts"`
}

// Log returns a logrus.Entry with a package field set.
func Log(p string) *logrus.Entry {
	l := logrus.WithFields(logrus.Fields{
		"package": p,
	})
	return l
}

// LogErr returns a logrus.Entry with an error field set.
func LogErr(entry *logrus.Entry, err error) *logrus.Entry {
	return entry.WithFields(logrus.Fields{
		"error": err.Error(),
	})
}

// SetLevel parses and applies the global log level. An empty level
// leaves the current one in place.
func SetLevel(level string) error {
	if len(level) == 0 {
		return nil
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}
	logrus.SetLevel(lvl)
	log.WithField("level", lvl).Debug("Log level set")
	return nil
}

const alphachars = "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// UniqueString generates a unique string only using the characters from
// alphachars constant, with length as specified.
func UniqueString(alpha int) string {
	rmu.Lock()
	defer rmu.Unlock()

	var buf bytes.Buffer
	for i := 0; i < alpha; i++ {
		idx := r.Intn(len(alphachars))
		buf.WriteByte(alphachars[idx])
	}
	return buf.String()
}

// Underscore converts a CamelCase kind into its snake_case form:
//  AssociatedModel => associated_model
//  HTTPServer      => http_server
func Underscore(kind string) string {
	return strcase.ToSnake(kind)
}
