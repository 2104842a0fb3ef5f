package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Framework identifies the regulatory regime an audit is run against
type Framework string

const (
	FrameworkGwG    Framework = "gwg"
	FrameworkDORA   Framework = "dora"
	FrameworkMaRisk Framework = "marisk"
	FrameworkWpHG   Framework = "wphg"
)

// ErrUnknownFramework is returned for identifiers outside the registry
var ErrUnknownFramework = errors.New("unknown regulatory framework")

// FrameworkProfile carries everything framework-specific the pipeline needs
type FrameworkProfile struct {
	Framework   Framework
	Label       string
	Role        string // examiner role and legal basis for the system prompt
	CatalogPath string
}

var frameworkProfiles = map[Framework]FrameworkProfile{
	FrameworkGwG: {
		Framework: FrameworkGwG,
		Label:     "GwG special audit (AML/CFT)",
		Role: "You are an experienced BaFin special examiner specialising in anti-money-laundering.\n" +
			"You are conducting a special audit under §25h KWG and the GwG.\n" +
			"Relevant legal framework: GwG 2017 as amended 2024, §25h KWG, BaFin AuA GwG, AMLA guidelines.",
		CatalogPath: "catalog/gwg_catalog.json",
	},
	FrameworkDORA: {
		Framework: FrameworkDORA,
		Label:     "DORA - Digital Operational Resilience Act",
		Role: "You are an experienced examiner specialising in digital operational resilience.\n" +
			"You are conducting an audit under DORA (EU) 2022/2554.\n" +
			"Relevant legal framework: DORA Art. 5-46, RTS ICT Risk, RTS Incident Reporting, TIBER-EU.",
		CatalogPath: "catalog/dora_catalog.json",
	},
	FrameworkMaRisk: {
		Framework: FrameworkMaRisk,
		Label:     "MaRisk audit",
		Role: "You are an experienced BaFin examiner specialising in risk management.\n" +
			"You are conducting an audit under MaRisk (BaFin circular) and §25a KWG.\n" +
			"Relevant legal framework: MaRisk 2023 (AT/BT), §25a KWG, EBA guidelines.",
		CatalogPath: "catalog/marisk_catalog.json",
	},
	FrameworkWpHG: {
		Framework: FrameworkWpHG,
		Label:     "WpHG / MaComp audit",
		Role: "You are an experienced examiner specialising in securities supervision and compliance.\n" +
			"You are conducting an audit under the WpHG and MaComp.\n" +
			"Relevant legal framework: WpHG, MaComp, MAR (EU) No 596/2014, MiFID II.",
		CatalogPath: "catalog/wphg_catalog.json",
	},
}

// ParseFramework resolves an identifier such as "DoRa" to a registered framework
func ParseFramework(s string) (Framework, error) {
	fw := Framework(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := frameworkProfiles[fw]; !ok {
		return "", fmt.Errorf("%w: %q (available: %s)", ErrUnknownFramework, s, strings.Join(FrameworkNames(), ", "))
	}
	return fw, nil
}

// Profile returns the registered profile; unknown frameworks fall back to GwG like the catalog registry does
func (f Framework) Profile() FrameworkProfile {
	if p, ok := frameworkProfiles[f]; ok {
		return p
	}
	return frameworkProfiles[FrameworkGwG]
}

// FrameworkNames lists registered identifiers in stable order
func FrameworkNames() []string {
	names := make([]string, 0, len(frameworkProfiles))
	for fw := range frameworkProfiles {
		names = append(names, string(fw))
	}
	sort.Strings(names)
	return names
}
