package seed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"github.com/appraisal-ops/field-scheduler/backend/internal/domain"
	"github.com/appraisal-ops/field-scheduler/backend/internal/scheduler"
	"github.com/appraisal-ops/field-scheduler/backend/internal/utils"
	"gopkg.in/yaml.v3"
)

// Fixture 描述一个组织的初始数据，资源通过名称、编码和序列号引用其他记录
type Fixture struct {
	Organization int64              `yaml:"organization"`
	Territories  []TerritoryFixture `yaml:"territories"`
	Skills       []SkillFixture     `yaml:"skills"`
	Equipment    []EquipmentFixture `yaml:"equipment"`
	Resources    []ResourceFixture  `yaml:"resources"`
}

type TerritoryFixture struct {
	Name        string   `yaml:"name"`
	PostalCodes []string `yaml:"postalCodes"`
	Inactive    bool     `yaml:"inactive"`
}

type SkillFixture struct {
	Code          string `yaml:"code"`
	Name          string `yaml:"name"`
	Certification bool   `yaml:"certification"`
}

type EquipmentFixture struct {
	Name         string `yaml:"name"`
	SerialNumber string `yaml:"serialNumber"`
	Condition    string `yaml:"condition"`
}

type ResourceSkillFixture struct {
	Code                string `yaml:"code"`
	Proficiency         int32  `yaml:"proficiency"`
	CertificationNumber string `yaml:"certificationNumber"`
	CertificationIssuer string `yaml:"certificationIssuer"`
	ExpiresOn           string `yaml:"expiresOn"` // YYYY-MM-DD
}

type ResourceFixture struct {
	Name                  string                 `yaml:"name"`
	Code                  string                 `yaml:"code"` // 为空时由名称生成
	Email                 string                 `yaml:"email"`
	Kind                  string                 `yaml:"kind"`
	Employment            string                 `yaml:"employment"`
	Bookable              *bool                  `yaml:"bookable"`
	Timezone              string                 `yaml:"timezone"`
	MaxAppointmentsPerDay int32                  `yaml:"maxAppointmentsPerDay"`
	MaxHoursPerWeek       int32                  `yaml:"maxHoursPerWeek"`
	PrimaryTerritory      string                 `yaml:"primaryTerritory"`
	Territories           []string               `yaml:"territories"`
	Skills                []ResourceSkillFixture `yaml:"skills"`
	Equipment             []string               `yaml:"equipment"` // 序列号
}

// Writer 初始化数据所需的写入操作，由 repository.Repository 实现
type Writer interface {
	CreateTerritory(ctx context.Context, territory *domain.Territory) error
	CreateSkill(ctx context.Context, skill *domain.Skill) error
	CreateEquipment(ctx context.Context, eq *domain.Equipment) error
	CreateResource(ctx context.Context, res *domain.Resource) error
	CreateSkillAssignment(ctx context.Context, sa *domain.SkillAssignment) error
}

// Invalidator 区域缓存，由 repository.TerritoryCache 实现
type Invalidator interface {
	Invalidate(ctx context.Context, orgID int64, postalCodes ...string) error
}

func LoadFixtureFile(path string) (*Fixture, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return LoadFixture(file)
}

// LoadFixture 解析并校验 YAML，未知字段视为错误
func LoadFixture(r io.Reader) (*Fixture, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var f Fixture
	if err := decoder.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("初始化数据文件为空")
		}
		return nil, err
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

var (
	resourceKinds = map[string]bool{
		string(domain.ResourceKindPerson):    true,
		string(domain.ResourceKindEquipment): true,
		string(domain.ResourceKindVehicle):   true,
		string(domain.ResourceKindFacility):  true,
	}
	employmentTypes = map[string]bool{
		string(domain.EmploymentEmployee):   true,
		string(domain.EmploymentContractor): true,
		string(domain.EmploymentNone):       true,
	}
	conditions = map[string]bool{
		string(domain.ConditionNew):     true,
		string(domain.ConditionGood):    true,
		string(domain.ConditionFair):    true,
		string(domain.ConditionPoor):    true,
		string(domain.ConditionDamaged): true,
	}
)

// Validate 检查引用关系并规范化邮编，缺省值也在这里补齐
func (f *Fixture) Validate() error {
	if f.Organization <= 0 {
		return errors.New("organization 必须为正数")
	}

	territories := make(map[string]bool, len(f.Territories))
	for i := range f.Territories {
		t := &f.Territories[i]
		if t.Name == "" {
			return fmt.Errorf("territories[%d]: name 不能为空", i)
		}
		if territories[t.Name] {
			return fmt.Errorf("territories[%d]: 区域 %q 重复", i, t.Name)
		}
		territories[t.Name] = true

		for j, code := range t.PostalCodes {
			postal, err := scheduler.NormalizePostalCode(code)
			if err != nil {
				return fmt.Errorf("territories[%d].postalCodes[%d]: %w", i, j, err)
			}
			t.PostalCodes[j] = postal
		}
	}

	skills := make(map[string]bool, len(f.Skills))
	for i, s := range f.Skills {
		if s.Code == "" || s.Name == "" {
			return fmt.Errorf("skills[%d]: code 与 name 不能为空", i)
		}
		if skills[s.Code] {
			return fmt.Errorf("skills[%d]: 技能 %q 重复", i, s.Code)
		}
		skills[s.Code] = true
	}

	serials := make(map[string]bool, len(f.Equipment))
	for i := range f.Equipment {
		eq := &f.Equipment[i]
		if eq.Name == "" || eq.SerialNumber == "" {
			return fmt.Errorf("equipment[%d]: name 与 serialNumber 不能为空", i)
		}
		if serials[eq.SerialNumber] {
			return fmt.Errorf("equipment[%d]: 序列号 %q 重复", i, eq.SerialNumber)
		}
		serials[eq.SerialNumber] = true
		if eq.Condition == "" {
			eq.Condition = string(domain.ConditionGood)
		}
		if !conditions[eq.Condition] {
			return fmt.Errorf("equipment[%d]: 未知的成色 %q", i, eq.Condition)
		}
	}

	codes := make(map[string]bool, len(f.Resources))
	assigned := make(map[string]string)
	for i := range f.Resources {
		res := &f.Resources[i]
		if res.Name == "" {
			return fmt.Errorf("resources[%d]: name 不能为空", i)
		}
		if res.Code == "" {
			res.Code = utils.ResourceCode(res.Name)
		}
		if res.Code == "" {
			return fmt.Errorf("resources[%d]: 无法从名称 %q 生成编码", i, res.Name)
		}
		if codes[res.Code] {
			return fmt.Errorf("resources[%d]: 资源编码 %q 重复", i, res.Code)
		}
		codes[res.Code] = true

		if res.Kind == "" {
			res.Kind = string(domain.ResourceKindPerson)
		}
		if !resourceKinds[res.Kind] {
			return fmt.Errorf("resources[%d]: 未知的资源类型 %q", i, res.Kind)
		}
		if res.Employment == "" {
			res.Employment = string(domain.EmploymentEmployee)
			if res.Kind != string(domain.ResourceKindPerson) {
				res.Employment = string(domain.EmploymentNone)
			}
		}
		if !employmentTypes[res.Employment] {
			return fmt.Errorf("resources[%d]: 未知的雇佣类型 %q", i, res.Employment)
		}
		if res.Timezone != "" {
			if _, err := time.LoadLocation(res.Timezone); err != nil {
				return fmt.Errorf("resources[%d]: 无法解析时区 %q", i, res.Timezone)
			}
		}
		if res.MaxAppointmentsPerDay < 0 || res.MaxHoursPerWeek < 0 {
			return fmt.Errorf("resources[%d]: 容量上限不能为负数", i)
		}

		for _, name := range res.Territories {
			if !territories[name] {
				return fmt.Errorf("resources[%d]: 引用了不存在的区域 %q", i, name)
			}
		}
		if res.PrimaryTerritory != "" {
			if !territories[res.PrimaryTerritory] {
				return fmt.Errorf("resources[%d]: 引用了不存在的主区域 %q", i, res.PrimaryTerritory)
			}
			found := false
			for _, name := range res.Territories {
				if name == res.PrimaryTerritory {
					found = true
				}
			}
			if !found {
				res.Territories = append(res.Territories, res.PrimaryTerritory)
			}
		}

		for j, s := range res.Skills {
			if !skills[s.Code] {
				return fmt.Errorf("resources[%d].skills[%d]: 引用了不存在的技能 %q", i, j, s.Code)
			}
			if s.ExpiresOn != "" {
				if _, err := time.Parse(time.DateOnly, s.ExpiresOn); err != nil {
					return fmt.Errorf("resources[%d].skills[%d]: expiresOn 必须为 YYYY-MM-DD", i, j)
				}
			}
		}

		for _, serial := range res.Equipment {
			if !serials[serial] {
				return fmt.Errorf("resources[%d]: 引用了不存在的设备 %q", i, serial)
			}
			if owner, ok := assigned[serial]; ok {
				return fmt.Errorf("resources[%d]: 设备 %q 已配备给 %q", i, serial, owner)
			}
			assigned[serial] = res.Code
		}
	}

	return nil
}

type Summary struct {
	Territories      int
	Skills           int
	Equipment        int
	Resources        int
	SkillAssignments int
	// PostalCodes 新建区域覆盖的邮编，写入后需要让区域缓存失效
	PostalCodes      []string
}

// Apply 按依赖顺序写入：区域、技能、设备、资源、技能认证。
// 任何一步失败都立即返回，已写入的数据不会回滚。
// cache 不为 nil 时，区域写入后清除其邮编的缓存结果，清除失败只记录警告。
func Apply(ctx context.Context, w Writer, cache Invalidator, f *Fixture) (*Summary, error) {
	summary := &Summary{}

	territoryIDs := make(map[string]int64, len(f.Territories))
	for _, t := range f.Territories {
		territory := &domain.Territory{
			OrganizationID: f.Organization,
			Name:           t.Name,
			IsActive:       !t.Inactive,
			PostalCodes:    t.PostalCodes,
		}
		if err := w.CreateTerritory(ctx, territory); err != nil {
			return summary, fmt.Errorf("创建区域 %q 失败: %w", t.Name, err)
		}
		territoryIDs[t.Name] = territory.ID
		summary.Territories++
		for _, code := range t.PostalCodes {
			if !slices.Contains(summary.PostalCodes, code) {
				summary.PostalCodes = append(summary.PostalCodes, code)
			}
		}
	}
	if cache != nil && len(summary.PostalCodes) > 0 {
		if err := cache.Invalidate(ctx, f.Organization, summary.PostalCodes...); err != nil {
			slog.Warn("清除区域缓存失败", slog.String("error", err.Error()))
		}
	}

	skillIDs := make(map[string]int64, len(f.Skills))
	for _, s := range f.Skills {
		skill := &domain.Skill{
			OrganizationID:  f.Organization,
			Code:            s.Code,
			Name:            s.Name,
			IsCertification: s.Certification,
		}
		if err := w.CreateSkill(ctx, skill); err != nil {
			return summary, fmt.Errorf("创建技能 %q 失败: %w", s.Code, err)
		}
		skillIDs[s.Code] = skill.ID
		summary.Skills++
	}

	equipmentIDs := make(map[string]int64, len(f.Equipment))
	for _, e := range f.Equipment {
		eq := &domain.Equipment{
			OrganizationID: f.Organization,
			Name:           e.Name,
			SerialNumber:   e.SerialNumber,
			Status:         domain.EquipmentAvailable,
			Condition:      domain.EquipmentCondition(e.Condition),
		}
		if err := w.CreateEquipment(ctx, eq); err != nil {
			return summary, fmt.Errorf("创建设备 %q 失败: %w", e.SerialNumber, err)
		}
		equipmentIDs[e.SerialNumber] = eq.ID
		summary.Equipment++
	}

	for _, r := range f.Resources {
		res := &domain.Resource{
			OrganizationID:        f.Organization,
			Code:                  r.Code,
			Name:                  r.Name,
			Email:                 r.Email,
			Kind:                  domain.ResourceKind(r.Kind),
			Employment:            domain.EmploymentType(r.Employment),
			IsBookable:            r.Bookable == nil || *r.Bookable,
			MaxAppointmentsPerDay: r.MaxAppointmentsPerDay,
			MaxHoursPerWeek:       r.MaxHoursPerWeek,
			Timezone:              r.Timezone,
		}
		for _, name := range r.Territories {
			res.TerritoryIDs = append(res.TerritoryIDs, territoryIDs[name])
		}
		if r.PrimaryTerritory != "" {
			primary := territoryIDs[r.PrimaryTerritory]
			res.PrimaryTerritoryID = &primary
		}
		for _, serial := range r.Equipment {
			res.EquipmentIDs = append(res.EquipmentIDs, equipmentIDs[serial])
		}

		if err := w.CreateResource(ctx, res); err != nil {
			return summary, fmt.Errorf("创建资源 %q 失败: %w", r.Code, err)
		}
		summary.Resources++

		for _, s := range r.Skills {
			sa := &domain.SkillAssignment{
				ResourceID:          res.ID,
				SkillID:             skillIDs[s.Code],
				ProficiencyLevel:    s.Proficiency,
				CertificationNumber: s.CertificationNumber,
				CertificationIssuer: s.CertificationIssuer,
			}
			if s.ExpiresOn != "" {
				expires, _ := time.Parse(time.DateOnly, s.ExpiresOn)
				sa.ExpiresOn = &expires
			}
			if err := w.CreateSkillAssignment(ctx, sa); err != nil {
				return summary, fmt.Errorf("为资源 %q 添加技能 %q 失败: %w", r.Code, s.Code, err)
			}
			summary.SkillAssignments++
		}
	}

	slog.Info("初始化数据写入完成",
		slog.Int64("organization", f.Organization),
		slog.Int("territories", summary.Territories),
		slog.Int("skills", summary.Skills),
		slog.Int("equipment", summary.Equipment),
		slog.Int("resources", summary.Resources),
		slog.Int("skillAssignments", summary.SkillAssignments),
	)
	return summary, nil
}
