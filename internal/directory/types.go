package directory

import "time"

// Account is one directory user, tagged by callers with its originating tenant.
type Account struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"displayName"`
	PrincipalName  string    `json:"userPrincipalName"`
	CreatedAt      time.Time `json:"createdDateTime"`
	AssignedSKUIDs []string  `json:"assignedSkuIds"`
}

// SKU is one subscribed license product with its seat counts.
type SKU struct {
	ID         string `json:"skuId"`
	PartNumber string `json:"skuPartNumber"`
	// Total is the number of prepaid seats; Used the consumed ones.
	Total int `json:"total"`
	Used  int `json:"used"`
}

// Subscription is one subscription lifecycle record.
type Subscription struct {
	SKUID         string     `json:"skuId"`
	NextLifecycle *time.Time `json:"nextLifecycleDateTime"`
}

// Wire shapes of the directory REST contract.

type createUserPayload struct {
	AccountEnabled    bool            `json:"accountEnabled"`
	DisplayName       string          `json:"displayName"`
	MailNickname      string          `json:"mailNickname"`
	UserPrincipalName string          `json:"userPrincipalName"`
	PasswordProfile   passwordProfile `json:"passwordProfile"`
	UsageLocation     string          `json:"usageLocation,omitempty"`
}

type passwordProfile struct {
	ForceChangePasswordNextSignIn bool   `json:"forceChangePasswordNextSignIn"`
	Password                      string `json:"password"`
}

type patchPasswordPayload struct {
	PasswordProfile passwordProfile `json:"passwordProfile"`
}

type assignLicensePayload struct {
	AddLicenses    []licenseAssignment `json:"addLicenses"`
	RemoveLicenses []string            `json:"removeLicenses"`
}

type licenseAssignment struct {
	DisabledPlans []string `json:"disabledPlans"`
	SKUID         string   `json:"skuId"`
}

type userResource struct {
	ID                string    `json:"id"`
	DisplayName       string    `json:"displayName"`
	UserPrincipalName string    `json:"userPrincipalName"`
	CreatedDateTime   time.Time `json:"createdDateTime"`
	AssignedLicenses  []struct {
		SKUID string `json:"skuId"`
	} `json:"assignedLicenses"`
}

type userPage struct {
	Value    []userResource `json:"value"`
	NextLink string         `json:"@odata.nextLink"`
}

type subscribedSKUResource struct {
	SKUID         string `json:"skuId"`
	SKUPartNumber string `json:"skuPartNumber"`
	PrepaidUnits  struct {
		Enabled int `json:"enabled"`
	} `json:"prepaidUnits"`
	ConsumedUnits int `json:"consumedUnits"`
}

type subscriptionResource struct {
	SKUID                 string     `json:"skuId"`
	NextLifecycleDateTime *time.Time `json:"nextLifecycleDateTime"`
}

type listEnvelope[T any] struct {
	Value []T `json:"value"`
}

type apiError struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
