package authz

import "strings"

// Feature is one administrative capability scoped by an ACCESS/EDIT
// permission pair.
type Feature string

const (
	FeatureEmail            Feature = "EMAIL"
	FeatureEmailTemplate    Feature = "EMAIL_TEMPLATE"
	FeatureImportMembers    Feature = "IMPORT_MEMBERS"
	FeatureImportPhotos     Feature = "IMPORT_PHOTOS"
	FeatureImportPresences  Feature = "IMPORT_PRESENCES"
	FeatureSaleHistory      Feature = "SALE_HISTORY"
	FeatureSaleInventory    Feature = "SALE_INVENTORY"
	FeatureSaleCategories   Feature = "SALE_CATEGORIES"
	FeatureSalePaymentModes Feature = "SALE_PAYMENT_MODES"
	FeatureSaleImport       Feature = "SALE_IMPORT"
)

// Features lists every feature with a permission pair.
func Features() []Feature {
	return []Feature{
		FeatureEmail,
		FeatureEmailTemplate,
		FeatureImportMembers,
		FeatureImportPhotos,
		FeatureImportPresences,
		FeatureSaleHistory,
		FeatureSaleInventory,
		FeatureSaleCategories,
		FeatureSalePaymentModes,
		FeatureSaleImport,
	}
}

const (
	accessSuffix = "_ACCESS"
	editSuffix   = "_EDIT"
)

// Permission is a fine-grained grant tag. Every feature has exactly one
// ACCESS and one EDIT permission; holding EDIT implies holding ACCESS for the
// same feature, never the reverse.
type Permission string

const (
	PermissionEmailAccess            Permission = "EMAIL_ACCESS"
	PermissionEmailEdit              Permission = "EMAIL_EDIT"
	PermissionEmailTemplateAccess    Permission = "EMAIL_TEMPLATE_ACCESS"
	PermissionEmailTemplateEdit      Permission = "EMAIL_TEMPLATE_EDIT"
	PermissionImportMembersAccess    Permission = "IMPORT_MEMBERS_ACCESS"
	PermissionImportMembersEdit      Permission = "IMPORT_MEMBERS_EDIT"
	PermissionImportPhotosAccess     Permission = "IMPORT_PHOTOS_ACCESS"
	PermissionImportPhotosEdit       Permission = "IMPORT_PHOTOS_EDIT"
	PermissionImportPresencesAccess  Permission = "IMPORT_PRESENCES_ACCESS"
	PermissionImportPresencesEdit    Permission = "IMPORT_PRESENCES_EDIT"
	PermissionSaleHistoryAccess      Permission = "SALE_HISTORY_ACCESS"
	PermissionSaleHistoryEdit        Permission = "SALE_HISTORY_EDIT"
	PermissionSaleInventoryAccess    Permission = "SALE_INVENTORY_ACCESS"
	PermissionSaleInventoryEdit      Permission = "SALE_INVENTORY_EDIT"
	PermissionSaleCategoriesAccess   Permission = "SALE_CATEGORIES_ACCESS"
	PermissionSaleCategoriesEdit     Permission = "SALE_CATEGORIES_EDIT"
	PermissionSalePaymentModesAccess Permission = "SALE_PAYMENT_MODES_ACCESS"
	PermissionSalePaymentModesEdit   Permission = "SALE_PAYMENT_MODES_EDIT"
	PermissionSaleImportAccess       Permission = "SALE_IMPORT_ACCESS"
	PermissionSaleImportEdit         Permission = "SALE_IMPORT_EDIT"
)

// AccessOf returns the ACCESS permission for a feature.
func AccessOf(f Feature) Permission {
	return Permission(string(f) + accessSuffix)
}

// EditOf returns the EDIT permission for a feature.
func EditOf(f Feature) Permission {
	return Permission(string(f) + editSuffix)
}

// IsAccess reports whether the permission is the ACCESS tier of its pair.
func (p Permission) IsAccess() bool {
	return strings.HasSuffix(string(p), accessSuffix)
}

// IsEdit reports whether the permission is the EDIT tier of its pair.
func (p Permission) IsEdit() bool {
	return strings.HasSuffix(string(p), editSuffix)
}

// Feature returns the feature the permission scopes, or "" if the tag does
// not follow the <FEATURE>_ACCESS / <FEATURE>_EDIT convention.
func (p Permission) Feature() Feature {
	s := string(p)
	switch {
	case strings.HasSuffix(s, accessSuffix):
		return Feature(strings.TrimSuffix(s, accessSuffix))
	case strings.HasSuffix(s, editSuffix):
		return Feature(strings.TrimSuffix(s, editSuffix))
	}
	return ""
}

// Implies reports whether holding p satisfies a check for q. A permission
// always satisfies itself; EDIT additionally satisfies the ACCESS tier of the
// same feature.
func (p Permission) Implies(q Permission) bool {
	if p == q {
		return true
	}
	return p.IsEdit() && q.IsAccess() && p.Feature() == q.Feature()
}

// AllPermissions lists every known permission, ACCESS before EDIT per feature.
func AllPermissions() []Permission {
	features := Features()
	out := make([]Permission, 0, len(features)*2)
	for _, f := range features {
		out = append(out, AccessOf(f), EditOf(f))
	}
	return out
}
