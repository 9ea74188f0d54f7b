// Package compliance computes document-compliance scores for contacts
// and deals against the Spanish real-estate document checklists.
package compliance

// Document category names, as produced by the OCR labeling pipeline.
const (
	DocDNI                = "DNI"
	DocNIE                = "NIE"
	DocPassport           = "Passport"
	DocPowerOfAttorney    = "Power of Attorney"
	DocKYCForm            = "KYC Form"
	DocProofOfFunds       = "Proof of Funds"
	DocTitleDeed          = "Property Title Deed"
	DocNotaSimple         = "Nota Simple"
	DocEnergyCertificate  = "Energy Certificate (CEE)"
	DocCommunityDebtCert  = "Community Debt Certificate"
	DocHabitabilityCert   = "Habitability Certificate (Cédula)"
	DocIBIReceipt         = "IBI Receipt"
	DocListingAgreement   = "Sales Listing Agreement (Nota de Encargo)"
	DocSeguroDecenal      = "Seguro Decenal"
	DocLibroDelEdificio   = "Libro del Edificio"
	DocNoUrbanInfraction  = "Certificate of No Urban Infraction"
	DocArrasContract      = "Earnest Money Contract (Arras)"
	DocITEInspection      = "Technical Building Inspection (ITE)"
	DocElectricalBulletin = "Electrical Bulletin (CIE)"
	DocPlusvaliaMunicipal = "Plusvalía Municipal"
	DocPayslips           = "Payslips"
	DocTaxReturns         = "Tax Returns"
	DocRentDefaultIns     = "Rent Default Insurance"
	DocCommunityMinutes   = "Community Meeting Minutes (Actas)"
	DocCommunityStatutes  = "Community Statutes"
	DocFloorPlans         = "Floor Plans"
	DocCadastralPlans     = "Cadastral Plans"
	DocUtilityBills       = "Utility Bills"
	DocHomeInsurance      = "Home Insurance"
	DocDefectPhotos       = "Defect Photos"
	DocPropertyPhotos     = "Property Photos"
	DocOther              = "Other"
)

// RiskLevel buckets document categories by how badly a deal needs them.
type RiskLevel string

const (
	RiskCritical    RiskLevel = "critical"
	RiskRecommended RiskLevel = "recommended"
	RiskAdvised     RiskLevel = "advised"
	RiskOther       RiskLevel = "other"
)

var criticalDocs = []string{
	DocDNI, DocNIE, DocPassport, DocPowerOfAttorney, DocKYCForm,
	DocProofOfFunds, DocTitleDeed, DocNotaSimple, DocEnergyCertificate,
	DocCommunityDebtCert, DocHabitabilityCert, DocIBIReceipt,
	DocListingAgreement, DocSeguroDecenal, DocLibroDelEdificio,
}

var recommendedDocs = []string{
	DocNoUrbanInfraction, DocArrasContract, DocITEInspection,
	DocElectricalBulletin, DocPlusvaliaMunicipal, DocPayslips,
	DocTaxReturns, DocRentDefaultIns,
}

var advisedDocs = []string{
	DocCommunityMinutes, DocCommunityStatutes, DocFloorPlans,
	DocCadastralPlans, DocUtilityBills, DocHomeInsurance,
	DocDefectPhotos, DocPropertyPhotos,
}

// importanceScores rank categories 1-10 for sorting and prioritization.
var importanceScores = map[string]int{
	DocDNI: 10, DocNIE: 10, DocPassport: 10,
	DocPowerOfAttorney: 9, DocKYCForm: 9, DocProofOfFunds: 9,
	DocTitleDeed: 10, DocNotaSimple: 9, DocEnergyCertificate: 9,
	DocCommunityDebtCert: 9, DocHabitabilityCert: 9, DocIBIReceipt: 8,
	DocListingAgreement: 10, DocSeguroDecenal: 8, DocLibroDelEdificio: 8,
	DocNoUrbanInfraction: 7, DocArrasContract: 8, DocITEInspection: 7,
	DocElectricalBulletin: 6, DocPlusvaliaMunicipal: 7, DocPayslips: 6,
	DocTaxReturns: 6, DocRentDefaultIns: 6,
	DocCommunityMinutes: 4, DocCommunityStatutes: 4, DocFloorPlans: 3,
	DocCadastralPlans: 3, DocUtilityBills: 3, DocHomeInsurance: 4,
	DocDefectPhotos: 2, DocPropertyPhotos: 2, DocOther: 1,
}

// AllCategories lists every category the labeling pipeline may emit.
func AllCategories() []string {
	all := make([]string, 0, len(criticalDocs)+len(recommendedDocs)+len(advisedDocs)+1)
	all = append(all, criticalDocs...)
	all = append(all, recommendedDocs...)
	all = append(all, advisedDocs...)
	all = append(all, DocOther)
	return all
}

// ImportanceScore returns the 1-10 importance of a category (1 when unknown).
func ImportanceScore(category string) int {
	if score, ok := importanceScores[category]; ok {
		return score
	}
	return 1
}

// CategoryRiskLevel returns the tier a category belongs to.
func CategoryRiskLevel(category string) RiskLevel {
	for _, c := range criticalDocs {
		if c == category {
			return RiskCritical
		}
	}
	for _, c := range recommendedDocs {
		if c == category {
			return RiskRecommended
		}
	}
	for _, c := range advisedDocs {
		if c == category {
			return RiskAdvised
		}
	}
	return RiskOther
}

// contactRequirements lists required documents per contact role.
// Tiers: critical / recommended / optional, weighted 60/30/10.
var contactRequirements = map[string]tierSet{
	"buyer": {
		critical:    []string{DocDNI, DocKYCForm, DocProofOfFunds},
		recommended: []string{DocPayslips, DocTaxReturns},
		optional:    []string{DocUtilityBills},
	},
	"seller": {
		critical:    []string{DocDNI, DocTitleDeed, DocNotaSimple, DocEnergyCertificate, DocListingAgreement},
		recommended: []string{DocCommunityDebtCert, DocIBIReceipt},
		optional:    []string{DocFloorPlans, DocPropertyPhotos},
	},
	"tenant": {
		critical:    []string{DocDNI, DocKYCForm},
		recommended: []string{DocPayslips, DocRentDefaultIns},
		optional:    []string{DocUtilityBills},
	},
	"landlord": {
		critical:    []string{DocDNI, DocTitleDeed, DocHabitabilityCert},
		recommended: []string{DocRentDefaultIns, DocIBIReceipt},
		optional:    []string{DocHomeInsurance, DocUtilityBills},
	},
	"lender": {
		critical:    []string{DocDNI, DocKYCForm},
		recommended: nil,
		optional:    nil,
	},
	"other": {},
}

// dealRequirements lists required documents per deal type.
// Tiers: critical / legally recommended / advised, weighted 50/30/20.
var dealRequirements = map[string]tierSet{
	"sale": {
		critical:    []string{DocTitleDeed, DocNotaSimple, DocEnergyCertificate, DocListingAgreement, DocCommunityDebtCert, DocIBIReceipt},
		recommended: []string{DocArrasContract, DocPlusvaliaMunicipal, DocNoUrbanInfraction},
		optional:    []string{DocFloorPlans, DocPropertyPhotos, DocCommunityStatutes},
	},
	"purchase": {
		critical:    []string{DocDNI, DocProofOfFunds, DocKYCForm, DocNotaSimple},
		recommended: []string{DocArrasContract, DocITEInspection},
		optional:    []string{DocFloorPlans, DocCadastralPlans},
	},
	"rental_landlord": {
		critical:    []string{DocTitleDeed, DocHabitabilityCert, DocEnergyCertificate},
		recommended: []string{DocRentDefaultIns, DocElectricalBulletin},
		optional:    []string{DocHomeInsurance, DocUtilityBills, DocPropertyPhotos},
	},
	"rental_tenant": {
		critical:    []string{DocDNI, DocPayslips},
		recommended: []string{DocTaxReturns},
		optional:    nil,
	},
}

type tierSet struct {
	critical    []string
	recommended []string
	optional    []string
}
