package model

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Kind is the closed set of ADCM object kinds.
type Kind string

const (
	KindCluster   Kind = "cluster"
	KindService   Kind = "service"
	KindComponent Kind = "component"
	KindProvider  Kind = "provider"
	KindHost      Kind = "host"
)

var kindOrder = map[Kind]int{
	KindCluster:   1,
	KindService:   2,
	KindComponent: 3,
	KindProvider:  4,
	KindHost:      5,
}

// Kinds lists all object kinds in their canonical order.
func Kinds() []Kind {
	return []Kind{KindCluster, KindService, KindComponent, KindProvider, KindHost}
}

func (k Kind) IsValid() bool {
	return kindOrder[k] > 0
}

func (k Kind) String() string {
	return string(k)
}

func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("unknown object kind %q", s)
	}
	return k, nil
}

// ObjectId identifies an object of the graph.
// It is comparable and can be used as map key.
type ObjectId struct {
	Kind Kind  `json:"type"`
	Id   int64 `json:"id"`
}

func NewObjectId(kind Kind, id int64) ObjectId {
	return ObjectId{Kind: kind, Id: id}
}

func (o ObjectId) IsZero() bool {
	return o.Kind == "" && o.Id == 0
}

func (o ObjectId) String() string {
	return fmt.Sprintf("%s/%d", o.Kind, o.Id)
}

// ParseObjectId parses the <kind>/<id> notation.
func ParseObjectId(s string) (ObjectId, error) {
	i := strings.Index(s, "/")
	if i < 0 {
		return ObjectId{}, fmt.Errorf("invalid object id %q: <kind>/<id> expected", s)
	}
	k, err := ParseKind(s[:i])
	if err != nil {
		return ObjectId{}, err
	}
	id, err := strconv.ParseInt(s[i+1:], 10, 64)
	if err != nil {
		return ObjectId{}, fmt.Errorf("invalid object id %q: %w", s, err)
	}
	return NewObjectId(k, id), nil
}

// CompareObjectId establishes the total order (kind, id) used
// to acquire owner locks and to render deterministic lists.
func CompareObjectId(a, b ObjectId) int {
	if c := cmp.Compare(kindOrder[a.Kind], kindOrder[b.Kind]); c != 0 {
		return c
	}
	return cmp.Compare(a.Id, b.Id)
}

// HostComponent is a single entry of the host-component mapping.
type HostComponent struct {
	Host      ObjectId `json:"host"`
	Component ObjectId `json:"component"`
}

func (hc HostComponent) String() string {
	return fmt.Sprintf("(%s,%s)", hc.Host, hc.Component)
}

func CompareHostComponent(a, b HostComponent) int {
	if c := CompareObjectId(a.Host, b.Host); c != 0 {
		return c
	}
	return CompareObjectId(a.Component, b.Component)
}
