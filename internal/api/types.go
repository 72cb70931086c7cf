package api

import (
	"github.com/leafsii/repokit/pkg/query"
	"github.com/leafsii/repokit/pkg/repository"
)

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ConditionDTO struct {
	Field          string `json:"field"`
	Operator       string `json:"operator"`
	ParameterIndex int    `json:"parameterIndex"`
	Logical        string `json:"logical,omitempty"`
}

type ParsedMethodDTO struct {
	Method     string         `json:"method"`
	Action     string         `json:"action"`
	Arity      int            `json:"arity"`
	Conditions []ConditionDTO `json:"conditions"`
	Rendered   string         `json:"rendered"`
}

type MethodDTO struct {
	Name     string           `json:"name"`
	Routable bool             `json:"routable"`
	Base     bool             `json:"base"`
	Parsed   *ParsedMethodDTO `json:"parsed,omitempty"`
}

type ColumnDTO struct {
	Name       string `json:"name"`
	Attribute  string `json:"attribute"`
	Type       string `json:"type"`
	Nullable   bool   `json:"nullable"`
	Unique     bool   `json:"unique"`
	Identifier bool   `json:"identifier"`
}

type RepositoryDTO struct {
	Name    string      `json:"name"`
	Entity  string      `json:"entity"`
	Table   string      `json:"table"`
	IDType  string      `json:"idType"`
	Columns []ColumnDTO `json:"columns"`
	Methods []MethodDTO `json:"methods"`
}

type InvokeRequest struct {
	Method string        `json:"method"`
	Args   []interface{} `json:"args"`
}

type InvokeResponse struct {
	Repository string      `json:"repository"`
	Method     string      `json:"method"`
	Result     interface{} `json:"result"`
}

func newParsedMethodDTO(m *query.ParsedMethod) *ParsedMethodDTO {
	dto := &ParsedMethodDTO{
		Method:     m.Name,
		Action:     m.Action.String(),
		Arity:      m.Arity(),
		Conditions: make([]ConditionDTO, 0, len(m.Conditions)),
		Rendered:   m.String(),
	}
	for i, c := range m.Conditions {
		cd := ConditionDTO{
			Field:          c.Field,
			Operator:       c.Operator.String(),
			ParameterIndex: c.ParameterIndex,
		}
		if i > 0 {
			cd.Logical = c.Logical.String()
		}
		dto.Conditions = append(dto.Conditions, cd)
	}
	return dto
}

func newRepositoryDTO(meta *repository.Metadata) RepositoryDTO {
	dto := RepositoryDTO{
		Name:    meta.Name(),
		Entity:  meta.EntityType.String(),
		Table:   meta.Entity.TableName,
		IDType:  meta.IDType.String(),
		Columns: make([]ColumnDTO, 0, len(meta.Entity.Columns)),
		Methods: make([]MethodDTO, 0, len(meta.Methods)),
	}
	for _, c := range meta.Entity.Columns {
		dto.Columns = append(dto.Columns, ColumnDTO{
			Name:       c.Name,
			Attribute:  c.Attribute,
			Type:       c.Type.String(),
			Nullable:   c.Nullable,
			Unique:     c.Unique,
			Identifier: c.Identifier,
		})
	}
	for _, m := range meta.Methods {
		md := MethodDTO{Name: m.Name, Routable: m.Routable, Base: meta.IsBase(m.Name)}
		if p, ok := meta.ParsedMethods[m.Name]; ok {
			md.Parsed = newParsedMethodDTO(p)
		}
		dto.Methods = append(dto.Methods, md)
	}
	return dto
}
