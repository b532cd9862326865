package concern

import (
	"github.com/mandelsoft/concerns/pkg/model"
)

// RefType is the type of an object reference in a reason placeholder.
type RefType string

const (
	RefCluster         RefType = "cluster"
	RefService         RefType = "service"
	RefComponent       RefType = "component"
	RefProvider        RefType = "provider"
	RefHost            RefType = "host"
	RefClusterMapping  RefType = "cluster_mapping"
	RefClusterServices RefType = "cluster_services"
	RefPrototype       RefType = "prototype"
	RefJob             RefType = "job"
)

// ConfigRefType provides the placeholder type for the configuration of objects of a kind.
func ConfigRefType(k model.Kind) RefType {
	return RefType(string(k) + "_config")
}

// ImportRefType provides the placeholder type for the imports of objects of a kind.
func ImportRefType(k model.Kind) RefType {
	return RefType(string(k) + "_import")
}

// ObjRef references an object for UI rendering.
type ObjRef struct {
	Type   RefType          `json:"type"`
	Name   string           `json:"name"`
	Params map[string]int64 `json:"params"`
}

// Placeholder holds the references substituted into the message template.
type Placeholder struct {
	Source *ObjRef `json:"source,omitempty"`
	Target *ObjRef `json:"target,omitempty"`
	Job    *ObjRef `json:"job,omitempty"`
}

// Reason is the structured message of a concern.
type Reason struct {
	Message     string      `json:"message"`
	Placeholder Placeholder `json:"placeholder"`
}

const (
	MsgConfigIssue        = "${source} has an issue with its config"
	MsgServiceIssue       = "${source} has an issue with required service: ${target}"
	MsgImportIssue        = "${source} has an issue with required import: ${target}"
	MsgHostComponentIssue = "${source} has an issue with host-component mapping"
	MsgRequirementIssue   = "${source} has an issue with requirement. Need to be installed: ${target}"
	MsgJobLock            = "Object was locked by running job ${job} on ${target}"
	MsgOutdatedConfig     = "${source} has an outdated configuration"
	MsgFlag               = "${source} has a flag: "
)

// Params provides the id parameters of an object reference.
func Params(o *model.Object) map[string]int64 {
	p := map[string]int64{}
	switch o.Id.Kind {
	case model.KindCluster:
		p["cluster_id"] = o.Id.Id
	case model.KindService:
		p["cluster_id"] = o.Cluster.Id
		p["service_id"] = o.Id.Id
	case model.KindComponent:
		p["cluster_id"] = o.Cluster.Id
		p["service_id"] = o.Owner.Id
		p["component_id"] = o.Id.Id
	case model.KindProvider:
		p["provider_id"] = o.Id.Id
	case model.KindHost:
		p["provider_id"] = o.Owner.Id
		p["host_id"] = o.Id.Id
	}
	return p
}

// ObjectRef references an object. Without an explicit type the kind
// of the object is used.
func ObjectRef(o *model.Object, typ ...RefType) *ObjRef {
	t := RefType(o.Id.Kind)
	if len(typ) > 0 {
		t = typ[0]
	}
	return &ObjRef{Type: t, Name: o.Name, Params: Params(o)}
}

func PrototypeRef(name string) *ObjRef {
	return &ObjRef{Type: RefPrototype, Name: name, Params: map[string]int64{}}
}

func JobRef(name string, id int64) *ObjRef {
	return &ObjRef{Type: RefJob, Name: name, Params: map[string]int64{"job_id": id}}
}

// IssueReason provides the reason of an issue with the given cause for
// an owner. The target references the missing counterpart, if any.
func IssueReason(owner *model.Object, cause Cause, target *ObjRef) Reason {
	switch cause {
	case CauseConfig:
		return Reason{Message: MsgConfigIssue, Placeholder: Placeholder{Source: ObjectRef(owner, ConfigRefType(owner.Id.Kind))}}
	case CauseService:
		return Reason{Message: MsgServiceIssue, Placeholder: Placeholder{Source: ObjectRef(owner, RefClusterServices), Target: target}}
	case CauseImport:
		return Reason{Message: MsgImportIssue, Placeholder: Placeholder{Source: ObjectRef(owner, ImportRefType(owner.Id.Kind)), Target: target}}
	case CauseHostComponent:
		return Reason{Message: MsgHostComponentIssue, Placeholder: Placeholder{Source: ObjectRef(owner, RefClusterMapping)}}
	case CauseRequirement:
		return Reason{Message: MsgRequirementIssue, Placeholder: Placeholder{Source: ObjectRef(owner), Target: target}}
	}
	return Reason{Message: "${source} has an issue", Placeholder: Placeholder{Source: ObjectRef(owner)}}
}

func LockReason(owner *model.Object, job *ObjRef) Reason {
	return Reason{Message: MsgJobLock, Placeholder: Placeholder{Job: job, Target: ObjectRef(owner)}}
}

func OutdatedConfigReason(owner *model.Object) Reason {
	return Reason{Message: MsgOutdatedConfig, Placeholder: Placeholder{Source: ObjectRef(owner)}}
}

func FlagReason(owner *model.Object, msg string) Reason {
	return Reason{Message: MsgFlag + msg, Placeholder: Placeholder{Source: ObjectRef(owner)}}
}
