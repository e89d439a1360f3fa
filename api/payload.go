package api

import (
	"maps"

	"github.com/google/uuid"
)

// KeyRelationship is the relationship label a locked door uses to record
// the fingerprint of the key that opens it.
const KeyRelationship = "key"

// Digest is a 128-bit fingerprint stored in a payload relationship.
type Digest [16]byte

// Payload is the structured state attached to a filesystem entry.
// A folder keeps it in its marker file; a file carries it inside its codec.
type Payload struct {
	// ID is assigned once and never changes for the life of the entry.
	ID        uuid.UUID `codec:"id" json:"id"`
	Transform Transform `codec:"transform" json:"transform"`

	Name          *string           `codec:"name,omitempty" json:"name,omitempty"`
	Actor         *Actor            `codec:"actor,omitempty" json:"actor,omitempty"`
	Voice         *Voice            `codec:"voice,omitempty" json:"voice,omitempty"`
	Rigidbody     *Rigidbody        `codec:"rigidbody,omitempty" json:"rigidbody,omitempty"`
	MeshCollider  *MeshCollider     `codec:"mesh_collider,omitempty" json:"mesh_collider,omitempty"`
	Scripts       []Script          `codec:"scripts,omitempty" json:"scripts,omitempty"`
	Relationships map[string]Digest `codec:"relationships,omitempty" json:"relationships,omitempty"`
	Pickup        *Pickup           `codec:"pickup,omitempty" json:"pickup,omitempty"`
}

// NewPayload returns a payload with a fresh ID and an identity transform.
func NewPayload() *Payload {
	return &Payload{ID: uuid.New(), Transform: Identity()}
}

// Vec3 is a three component vector.
type Vec3 [3]float32

// Quat is a rotation quaternion stored as x, y, z, w.
type Quat [4]float32

// Transform places a node relative to its parent.
type Transform struct {
	Translation Vec3 `codec:"translation" json:"translation"`
	Rotation    Quat `codec:"rotation" json:"rotation"`
	Scale       Vec3 `codec:"scale" json:"scale"`
}

// Identity returns the transform that leaves a node where its parent put it.
func Identity() Transform {
	return Transform{
		Rotation: Quat{0, 0, 0, 1},
		Scale:    Vec3{1, 1, 1},
	}
}

// IsZero reports whether t was never set. A zero scale is never a valid
// transform, so this distinguishes it from Identity.
func (t Transform) IsZero() bool {
	return t == Transform{}
}

// Actor bundles dialogue source and the variables local to one actor.
type Actor struct {
	LocalVariables map[string]Value `codec:"local_variables,omitempty" json:"local_variables,omitempty"`
	YarnSource     []byte           `codec:"yarn_source,omitempty" json:"yarn_source,omitempty"`
}

// Voice holds speech synthesis parameters.
type Voice struct {
	Pitch    int32   `codec:"pitch" json:"pitch"`
	Preset   int32   `codec:"preset" json:"preset"`
	Bank     int32   `codec:"bank" json:"bank"`
	Variance int32   `codec:"variance" json:"variance"`
	Speed    float32 `codec:"speed" json:"speed"`
}

// DefaultVoice is the voice an actor speaks with when nothing was configured.
func DefaultVoice() Voice {
	return Voice{Pitch: 60, Variance: 3, Speed: 1.0}
}

// Rigidbody selects how physics treats a node.
type Rigidbody string

const (
	RigidbodyDynamic   Rigidbody = "dynamic"
	RigidbodyStatic    Rigidbody = "static"
	RigidbodyKinematic Rigidbody = "kinematic"
)

// MeshCollider marks a node whose collision shape follows its mesh.
type MeshCollider struct {
	Convex bool `codec:"convex,omitempty" json:"convex,omitempty"`
}

// Script is one attached script. Scripts run in the order they are listed.
type Script struct {
	Language string `codec:"language" json:"language"`
	Source   string `codec:"source" json:"source"`
}

// Pickup marks a node the player can carry. It has no data.
type Pickup struct{}

// SetRelationship records label -> digest.
func (p *Payload) SetRelationship(label string, d Digest) {
	if p.Relationships == nil {
		p.Relationships = make(map[string]Digest)
	}
	p.Relationships[label] = d
}

// Relationship looks up a relationship by label.
func (p *Payload) Relationship(label string) (Digest, bool) {
	d, ok := p.Relationships[label]
	return d, ok
}

// DeleteRelationship removes label. An emptied map is dropped so the
// serialized form matches a payload that never had relationships.
func (p *Payload) DeleteRelationship(label string) {
	delete(p.Relationships, label)
	if len(p.Relationships) == 0 {
		p.Relationships = nil
	}
}

// DisplayName returns the payload name, or fallback when it has none.
func (p *Payload) DisplayName(fallback string) string {
	if p == nil || p.Name == nil {
		return fallback
	}
	return *p.Name
}

// Clone returns a deep copy of p.
func (p *Payload) Clone() *Payload {
	if p == nil {
		return nil
	}
	c := *p
	if p.Name != nil {
		n := *p.Name
		c.Name = &n
	}
	if p.Actor != nil {
		a := Actor{
			LocalVariables: maps.Clone(p.Actor.LocalVariables),
			YarnSource:     append([]byte(nil), p.Actor.YarnSource...),
		}
		if p.Actor.YarnSource == nil {
			a.YarnSource = nil
		}
		c.Actor = &a
	}
	if p.Voice != nil {
		v := *p.Voice
		c.Voice = &v
	}
	if p.Rigidbody != nil {
		r := *p.Rigidbody
		c.Rigidbody = &r
	}
	if p.MeshCollider != nil {
		m := *p.MeshCollider
		c.MeshCollider = &m
	}
	if p.Scripts != nil {
		c.Scripts = append([]Script(nil), p.Scripts...)
	}
	c.Relationships = maps.Clone(p.Relationships)
	if p.Pickup != nil {
		c.Pickup = &Pickup{}
	}
	return &c
}
