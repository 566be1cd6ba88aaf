package classifier

import "gmb-connector/internal/common/errors"

// ReasonSystemError is the reason attached to upstream 5xx responses.
const ReasonSystemError = "SYSTEM_ERROR"

// templates holds the caller-facing message per category. <ErrorCode> is
// replaced by the upstream reason.
var templates = map[errors.Category]string{
	errors.CategoryUnknown:            "Missing error code. Try different selection",
	errors.CategoryInvalidDataInput:   "Invalid or missing Location information <ErrorCode>. Correct the Location information or refer Google My business FAQ.",
	errors.CategoryOperationFailure:   "Cannot complete the specified Operation Error <ErrorCode>. Check request Action.",
	errors.CategoryUnverifiedLocation: "Location Verification is required to Manage this Location <ErrorCode>. Check verification Status of this Location or refer Google My business FAQ.",
	errors.CategorySystemError:        "Contact support for assistance.",
}

var reasonCategories = map[string]errors.Category{
	// unknown
	"ERROR_CODE_UNSPECIFIED":                     errors.CategoryUnknown,
	// invalidDataInput
	"ASSOCIATE_LOCATION_INVALID_PLACE_ID":        errors.CategoryInvalidDataInput,
	"PO_BOX_IN_ADDRESS_NOT_ALLOWED":              errors.CategoryInvalidDataInput,
	"BLOCKED_REGION":                             errors.CategoryInvalidDataInput,
	"LAT_LNG_TOO_FAR_FROM_ADDRESS":               errors.CategoryInvalidDataInput,
	"LAT_LNG_REQUIRED":                           errors.CategoryInvalidDataInput,
	"ADDRESS_MISSING_REGION_CODE":                errors.CategoryInvalidDataInput,
	"INVALID_SERVICE_AREA_PLACE_ID":              errors.CategoryInvalidDataInput,
	"INVALID_AREA_TYPE_FOR_SERVICE_AREA":         errors.CategoryInvalidDataInput,
	"INVALID_LATLNG":                             errors.CategoryInvalidDataInput,
	"INVALID_ADDRESS":                            errors.CategoryInvalidDataInput,
	"INVALID_SERVICE_ITEM":                       errors.CategoryInvalidDataInput,
	"INVALID_ATTRIBUTE_NAME":                     errors.CategoryInvalidDataInput,
	"INVALID_CHARACTERS":                         errors.CategoryInvalidDataInput,
	"FORBIDDEN_WORDS":                            errors.CategoryInvalidDataInput,
	"INVALID_INTERCHANGE_CHARACTERS":             errors.CategoryInvalidDataInput,
	"FIELDS_REQUIRED_FOR_CATEGORY":               errors.CategoryInvalidDataInput,
	"INVALID_LOCATION_CATEGORY":                  errors.CategoryInvalidDataInput,
	"INVALID_URL":                                errors.CategoryInvalidDataInput,
	"INVALID_PHONE_NUMBER":                       errors.CategoryInvalidDataInput,
	"INVALID_PHONE_NUMBER_FOR_REGION":            errors.CategoryInvalidDataInput,
	"MISSING_PRIMARY_PHONE_NUMBER":               errors.CategoryInvalidDataInput,
	"INVALID_CATEGORY":                           errors.CategoryInvalidDataInput,
	"INVALID_BUSINESS_OPENING_DATE":              errors.CategoryInvalidDataInput,
	"PROFILE_DESCRIPTION_CONTAINS_URL":           errors.CategoryInvalidDataInput,
	"ATTRIBUTE_INVALID_ENUM_VALUE":               errors.CategoryInvalidDataInput,
	"ATTRIBUTE_NOT_AVAILABLE":                    errors.CategoryInvalidDataInput,
	"ATTRIBUTE_TYPE_NOT_COMPATIBLE_FOR_CATEGORY": errors.CategoryInvalidDataInput,
	"INVALID_CATEGORY_FOR_SAB":                   errors.CategoryInvalidDataInput,
	"SERVICE_ITEM_LABEL_NO_DISPLAY_NAME":         errors.CategoryInvalidDataInput,
	"SERVICE_ITEM_LABEL_DUPLICATE_DISPLAY_NAME":  errors.CategoryInvalidDataInput,
	"SERVICE_ITEM_LABEL_INVALID_UTF8":            errors.CategoryInvalidDataInput,
	"FREE_FORM_SERVICE_ITEM_WITH_NO_CATEGORY_ID": errors.CategoryInvalidDataInput,
	"FREE_FORM_SERVICE_ITEM_WITH_NO_LABEL":       errors.CategoryInvalidDataInput,
	"SERVICE_ITEM_WITH_NO_SERVICE_TYPE_ID":       errors.CategoryInvalidDataInput,
	"INVALID_LANGUAGE":                           errors.CategoryInvalidDataInput,
	"OPENING_DATE_TOO_FAR_IN_THE_FUTURE":         errors.CategoryInvalidDataInput,
	"OPENING_DATE_MISSING_YEAR_OR_MONTH":         errors.CategoryInvalidDataInput,
	"OPENING_DATE_BEFORE_1AD":                    errors.CategoryInvalidDataInput,
	"SPECIAL_HOURS_SET_WITHOUT_REGULAR_HOURS":    errors.CategoryInvalidDataInput,
	"INVALID_TIME_SCHEDULE":                      errors.CategoryInvalidDataInput,
	"INVALID_HOURS_VALUE":                        errors.CategoryInvalidDataInput,
	"OVERLAPPED_SPECIAL_HOURS":                   errors.CategoryInvalidDataInput,
	"INCOMPATIBLE_MORE_HOURS_TYPE_FOR_CATEGORY":  errors.CategoryInvalidDataInput,
	"LINK_ALREADY_EXISTS":                        errors.CategoryInvalidDataInput,
	"SCALABLE_DEEP_LINK_INVALID_MULTIPLICITY":    errors.CategoryInvalidDataInput,
	"LINK_DOES_NOT_EXIST":                        errors.CategoryInvalidDataInput,
	"TOO_MANY_ENTRIES":                           errors.CategoryInvalidDataInput,
	"MISSING_ADDRESS_COMPONENTS":                 errors.CategoryInvalidDataInput,
	"STRING_TOO_LONG":                            errors.CategoryInvalidDataInput,
	"STRING_TOO_SHORT":                           errors.CategoryInvalidDataInput,
	"REQUIRED_FIELD_MISSING_VALUE":               errors.CategoryInvalidDataInput,
	"AMBIGUOUS_TITLE":                            errors.CategoryInvalidDataInput,
	"SERVICE_TYPE_ID_DUPLICATE":                  errors.CategoryInvalidDataInput,
	"PRICE_CURRENCY_MISSING":                     errors.CategoryInvalidDataInput,
	"PRICE_CURRENCY_INVALID":                     errors.CategoryInvalidDataInput,
	"INELIGIBLE_PLACE":                           errors.CategoryInvalidDataInput,
	// operationFailure
	"LAT_LNG_UPDATES_NOT_PERMITTED":              errors.CategoryOperationFailure,
	"ADDRESS_EDIT_CHANGES_COUNTRY":               errors.CategoryOperationFailure,
	"ADDRESS_REMOVAL_NOT_ALLOWED":                errors.CategoryOperationFailure,
	"RELATION_ENDPOINTS_TOO_FAR":                 errors.CategoryOperationFailure,
	"PIN_DROP_REQUIRED":                          errors.CategoryOperationFailure,
	"STOREFRONT_REQUIRED_FOR_CATEGORY":           errors.CategoryOperationFailure,
	"URL_PROVIDER_NOT_ALLOWED":                   errors.CategoryOperationFailure,
	"LODGING_CANNOT_EDIT_PROFILE_DESCRIPTION":    errors.CategoryOperationFailure,
	"PARENT_CHAIN_CANNOT_BE_THE_LOCATION_ITSELF": errors.CategoryOperationFailure,
	"RELATION_CANNOT_BE_THE_LOCATION_ITSELF":     errors.CategoryOperationFailure,
	"ATTRIBUTE_PROVIDER_URL_NOT_ALLOWED":         errors.CategoryOperationFailure,
	"ATTRIBUTE_CANNOT_BE_REPEATED":               errors.CategoryOperationFailure,
	"DUPLICATE_CHILDREN_LOCATIONS":               errors.CategoryOperationFailure,
	"INCOMPATIBLE_SERVICE_AREA_AND_CATEGORY":     errors.CategoryOperationFailure,
	"CANNOT_REOPEN":                              errors.CategoryOperationFailure,
	"PHONE_NUMBER_EDITS_NOT_ALLOWED":             errors.CategoryOperationFailure,
	"TOO_MANY_VALUES":                            errors.CategoryOperationFailure,
	"DELETED_LINK":                               errors.CategoryOperationFailure,
	"UNSUPPORTED_POINT_RADIUS_SERVICE_AREA":      errors.CategoryOperationFailure,
	"READ_ONLY_ADDRESS_COMPONENTS":               errors.CategoryOperationFailure,
	"STALE_DATA":                                 errors.CategoryOperationFailure,
	"MULTIPLE_ORGANIZATIONALLY_PART_OF_RELATION": errors.CategoryOperationFailure,
	"THROTTLED":                                  errors.CategoryOperationFailure,
	"ACCESS_TOKEN_SCOPE_INSUFFICIENT":            errors.CategoryOperationFailure,
	// unverifiedLocationOrChainLimitation
	"UNVERIFIED_LOCATION":                        errors.CategoryUnverifiedLocation,
	// systemError
	"SYSTEM_ERROR":                               errors.CategorySystemError,
}

// remediationLinks points at the public help article for a reason. Reasons
// without an article are absent.
var remediationLinks = map[string]string{
	"INELIGIBLE_PLACE":                           "https://support.google.com/contributionpolicy/answer/12473822?hl=en-GB&sjid=7410568640173031358-AP",
	"ACCESS_TOKEN_SCOPE_INSUFFICIENT":            "https://support.google.com/cloud/answer/13464325?hl=en&sjid=7410568640173031358-AP",
	"UNVERIFIED_LOCATION":                        "https://support.google.com/business/answer/4669139?hl=en&sjid=7410568640173031358-AP",
	"ASSOCIATE_LOCATION_INVALID_PLACE_ID":        "https://support.google.com/business/answer/4495875?hl=en&sjid=12930847905735908828-AP",
	"LAT_LNG_UPDATES_NOT_PERMITTED":              "https://support.google.com/business/thread/169386950?hl=en&sjid=12930847905735908828-AP",
	"PO_BOX_IN_ADDRESS_NOT_ALLOWED":              "https://support.google.com/business/answer/9876800?hl=en-GB&co=GENIE.Platform%3DAndroid&sjid=12930847905735908828-AP",
	"BLOCKED_REGION":                             "https://support.google.com/business/answer/9157481?hl=en-GB&sjid=12930847905735908828-AP",
	"LAT_LNG_TOO_FAR_FROM_ADDRESS":               "https://support.google.com/business/thread/169386950?hl=en&sjid=12930847905735908828-AP",
	"LAT_LNG_REQUIRED":                           "https://support.google.com/business/thread/169386950?hl=en&sjid=12930847905735908828-AP",
	"ADDRESS_MISSING_REGION_CODE":                "https://support.google.com/business/answer/6397478?hl=en&sjid=12930847905735908828-AP",
	"ADDRESS_EDIT_CHANGES_COUNTRY":               "https://support.google.com/business/answer/2853879?hl=en-GB&sjid=12930847905735908828-AP",
	"ADDRESS_REMOVAL_NOT_ALLOWED":                "https://support.google.com/business/answer/2853879?hl=en-GB&sjid=12930847905735908828-AP",
	"INVALID_SERVICE_AREA_PLACE_ID":              "https://support.google.com/business/answer/9157481?hl=en-GB&sjid=12930847905735908828-AP",
	"INVALID_AREA_TYPE_FOR_SERVICE_AREA":         "https://support.google.com/business/answer/9157481?hl=en&sjid=12930847905735908828-AP",
	"INVALID_LATLNG":                             "https://support.google.com/business/answer/3500741?hl=en-GB&sjid=12930847905735908828-AP#:~:text=Latitude%20and%20longitude%20errors",
	"INVALID_ADDRESS":                            "https://support.google.com/business/thread/136606019?hl=en&sjid=12930847905735908828-AP",
	"INVALID_SERVICE_ITEM":                       "https://support.google.com/business/answer/9455399?hl=en&sjid=12930847905735908828-AP",
	"PIN_DROP_REQUIRED":                          "https://support.google.com/business/answer/6279343?hl=en-GB&sjid=12930847905735908828-AP",
	"INVALID_ATTRIBUTE_NAME":                     "https://support.google.com/business/answer/4495875?hl=en-GB&sjid=12930847905735908828-AP",
	"INVALID_CHARACTERS":                         "https://support.google.com/business/answer/13769188?hl=en-GB&sjid=12930847905735908828-AP",
	"FORBIDDEN_WORDS":                            "https://support.google.com/business/answer/3038177?hl=en-GB&sjid=12930847905735908828-AP",
	"INVALID_INTERCHANGE_CHARACTERS":             "https://support.google.com/business/answer/3500741?hl=en-GB&sjid=12930847905735908828-AP#:~:text=Characters%20that%20aren%E2%80%99t%20allowed",
	"FIELDS_REQUIRED_FOR_CATEGORY":               "https://support.google.com/business/answer/3039617?hl=en-GB&sjid=12930847905735908828-AP#zippy=%2Ccategory",
	"STOREFRONT_REQUIRED_FOR_CATEGORY":           "https://support.google.com/business/answer/3038177?hl=en&sjid=12930847905735908828-AP",
	"INVALID_LOCATION_CATEGORY":                  "https://support.google.com/business/answer/4495875?hl=en-GB&sjid=12930847905735908828-AP",
	"INVALID_URL":                                "https://support.google.com/business/answer/13769188?hl=en&sjid=12930847905735908828-AP",
	"URL_PROVIDER_NOT_ALLOWED":                   "https://support.google.com/business/answer/3500741?hl=en-GB&sjid=12930847905735908828-AP#:~:text=URL%20in%20the%20store%20code%20field",
	"INVALID_PHONE_NUMBER":                       "https://support.google.com/business/thread/59795699?hl=en&sjid=12930847905735908828-AP",
	"MISSING_PRIMARY_PHONE_NUMBER":               "https://support.google.com/business/answer/3039617?hl=en-GB&sjid=12930847905735908828-AP",
	"INVALID_CATEGORY":                           "https://support.google.com/business/answer/3500741?hl=en-GB&sjid=12930847905735908828-AP#:~:text=only%20allowed%20characters.-,Invalid%20categories%3A,-Certain%20categories%20are",
	"INVALID_BUSINESS_OPENING_DATE":              "https://support.google.com/business/answer/9174409?hl=en-GB&sjid=12930847905735908828-AP",
	"PROFILE_DESCRIPTION_CONTAINS_URL":           "https://support.google.com/business/answer/9273900?hl=en&co=GENIE.Platform%3DDesktop&sjid=12930847905735908828-AP",
	"PARENT_CHAIN_CANNOT_BE_THE_LOCATION_ITSELF": "https://support.google.com/business/answer/4495875?hl=en&sjid=12930847905735908828-AP",
	"RELATION_CANNOT_BE_THE_LOCATION_ITSELF":     "https://support.google.com/business/answer/4495875?hl=en&sjid=12930847905735908828-AP",
	"ATTRIBUTE_PROVIDER_URL_NOT_ALLOWED":         "https://support.google.com/business/answer/3500741?hl=en&sjid=12930847905735908828-AP#:~:text=URL%20in%20the%20store%20code%20field",
	"ATTRIBUTE_NOT_AVAILABLE":                    "https://support.google.com/business/answer/9049526?hl=en-GB&sjid=12930847905735908828-AP",
	"ATTRIBUTE_CANNOT_BE_REPEATED":               "https://support.google.com/business/answer/9049526?hl=en-GB&sjid=12930847905735908828-AP",
	"ATTRIBUTE_TYPE_NOT_COMPATIBLE_FOR_CATEGORY": "https://support.google.com/business/answer/9049526?hl=en-GB&sjid=12930847905735908828-AP",
	"INVALID_CATEGORY_FOR_SAB":                   "https://support.google.com/business/answer/3500741?hl=en&sjid=12930847905735908828-AP#:~:text=only%20allowed%20characters.-,Invalid%20categories,-Certain%20categories%20are",
	"SERVICE_ITEM_LABEL_NO_DISPLAY_NAME":         "https://support.google.com/business/answer/9455399?hl=en&sjid=12930847905735908828-AP",
	"SERVICE_ITEM_LABEL_DUPLICATE_DISPLAY_NAME":  "https://support.google.com/business/answer/9455399?hl=en&sjid=12930847905735908828-AP",
	"SERVICE_ITEM_LABEL_INVALID_UTF8":            "https://support.google.com/business/answer/9455399?hl=en&sjid=12930847905735908828-AP",
	"FREE_FORM_SERVICE_ITEM_WITH_NO_CATEGORY_ID": "https://support.google.com/business/answer/9455399?hl=en&sjid=12930847905735908828-AP",
	"FREE_FORM_SERVICE_ITEM_WITH_NO_LABEL":       "https://support.google.com/business/answer/9455399?hl=en-GB&sjid=12930847905735908828-AP",
	"SERVICE_ITEM_WITH_NO_SERVICE_TYPE_ID":       "https://support.google.com/business/answer/9455399?hl=en-GB&sjid=12930847905735908828-AP",
	"INVALID_LANGUAGE":                           "https://support.google.com/business/thread/238452791?hl=en&sjid=12930847905735908828-AP",
	"OPENING_DATE_TOO_FAR_IN_THE_FUTURE":         "https://support.google.com/business/answer/9174409?hl=en&sjid=12930847905735908828-AP",
	"OPENING_DATE_MISSING_YEAR_OR_MONTH":         "https://support.google.com/business/answer/9174409?hl=en&sjid=12930847905735908828-AP",
	"OPENING_DATE_BEFORE_1AD":                    "https://support.google.com/business/answer/9174409?hl=en&sjid=12930847905735908828-AP",
	"SPECIAL_HOURS_SET_WITHOUT_REGULAR_HOURS":    "https://support.google.com/business/answer/6303076?hl=en-GB&sjid=12930847905735908828-AP",
	"INVALID_TIME_SCHEDULE":                      "https://support.google.com/business/answer/6303076?hl=en-GB&sjid=12930847905735908828-AP",
	"INVALID_HOURS_VALUE":                        "https://support.google.com/business/answer/9876800?hl=en-GB&co=GENIE.Platform%3DDesktop&sjid=12930847905735908828-AP",
	"OVERLAPPED_SPECIAL_HOURS":                   "https://support.google.com/business/answer/6303076?hl=en-GB&sjid=12930847905735908828-AP",
	"INCOMPATIBLE_MORE_HOURS_TYPE_FOR_CATEGORY":  "https://support.google.com/business/answer/9876800?hl=en-GB&co=GENIE.Platform%3DDesktop&sjid=12930847905735908828-AP",
	"DUPLICATE_CHILDREN_LOCATIONS":               "https://support.google.com/business/answer/4669139?hl=en-GB&sjid=12930847905735908828-AP",
	"INCOMPATIBLE_SERVICE_AREA_AND_CATEGORY":     "https://support.google.com/business/answer/9157481?hl=en&sjid=12930847905735908828-AP",
	"CANNOT_REOPEN":                              "https://support.google.com/business/answer/10417060?hl=en-GB&sjid=12930847905735908828-AP",
	"PHONE_NUMBER_EDITS_NOT_ALLOWED":             "https://support.google.com/business/answer/10417060?hl=en-GB&sjid=12930847905735908828-AP",
	"TOO_MANY_VALUES":                            "https://support.google.com/business/answer/3500741?hl=en&sjid=12930847905735908828-AP#:~:text=your%20store%20codes.-,Too%20many%20characters,-Some%20of%20your",
	"DELETED_LINK":                               "https://support.google.com/business/answer/13580646?hl=en-GB&sjid=12930847905735908828-AP",
	"LINK_ALREADY_EXISTS":                        "https://support.google.com/business/answer/13769188?hl=en&sjid=12930847905735908828-AP",
	"SCALABLE_DEEP_LINK_INVALID_MULTIPLICITY":    "https://support.google.com/business/answer/13769188?hl=en&sjid=12930847905735908828-AP",
	"LINK_DOES_NOT_EXIST":                        "https://support.google.com/business/answer/13769188?hl=en&sjid=12930847905735908828-AP",
	"TOO_MANY_ENTRIES":                           "https://support.google.com/business/answer/3500741?hl=en&sjid=12930847905735908828-AP#:~:text=your%20shop%20codes.-,Too%20many%20characters,-Some%20of%20your",
	"UNSUPPORTED_POINT_RADIUS_SERVICE_AREA":      "https://support.google.com/business/answer/9157481?hl=en-GB&sjid=12930847905735908828-AP",
	"MISSING_ADDRESS_COMPONENTS":                 "https://support.google.com/business/answer/6397478?hl=en-GB&sjid=12930847905735908828-AP",
	"READ_ONLY_ADDRESS_COMPONENTS":               "https://support.google.com/business/answer/2853879?hl=en-GB&sjid=12930847905735908828-AP#zippy=%2Cadd-or-edit-your-address:~:text=Add%2C%20edit%20or%20remove%20your%20address",
	"STRING_TOO_LONG":                            "https://support.google.com/business/answer/3370250?hl=en-GB&sjid=12930847905735908828-AP#zippy=%2Cbusiness-name:~:text=Important%3A%20A%20business%20name%20is%20required%20for%20each%20location.",
	"STRING_TOO_SHORT":                           "https://support.google.com/business/answer/3370250?hl=en-GB&sjid=12930847905735908828-AP#zippy=%2Cbusiness-name:~:text=Include%20an%20acronym%20of%20up%20to%20four%20letters",
	"REQUIRED_FIELD_MISSING_VALUE":               "https://support.google.com/business/answer/3370250?sjid=12930847905735908828-AP",
	"AMBIGUOUS_TITLE":                            "https://support.google.com/business/answer/3038177?hl=en&sjid=12930847905735908828-AP",
	"SERVICE_TYPE_ID_DUPLICATE":                  "https://support.google.com/business/answer/12756178?hl=en-GB&sjid=12930847905735908828-AP",
	"STALE_DATA":                                 "https://support.google.com/business/answer/10018786?hl=en-GB&sjid=12930847905735908828-AP",
	"MULTIPLE_ORGANIZATIONALLY_PART_OF_RELATION": "https://support.google.com/business/answer/7655842?hl=en-GB&sjid=12930847905735908828-AP",
}

var reasonDetails = map[string]string{
	"ERROR_CODE_UNSPECIFIED":                     "Missing error code.",
	"INVALID_ATTRIBUTE_NAME":                     "Invalid attribute name for this location.",
	"ASSOCIATE_OPERATION_ON_VERIFIED_LOCATION":   "Cannot modify a verified location.",
	"ASSOCIATE_LOCATION_INVALID_PLACE_ID":        "Invalid place ID for location association.",
	"LAT_LNG_UPDATES_NOT_PERMITTED":              "Cannot update location coordinates.",
	"PO_BOX_IN_ADDRESS_NOT_ALLOWED":              "PO box cannot be used in address.",
	"BLOCKED_REGION":                             "Business from this region is not accepted.",
	"MISSING_BOTH_PHONE_AND_WEBSITE":             "Phone or website is required for customer location businesses.",
	"MISSING_STOREFRONT_ADDRESS_OR_SAB":          "Location must have a storefront address or a service area.",
	"LAT_LNG_TOO_FAR_FROM_ADDRESS":               "Invalid location coordinates.",
	"LAT_LNG_REQUIRED":                           "Invalid address. Please provide latitude/longitude.",
	"INVALID_CHARACTERS":                         "Invalid characters found.",
	"FORBIDDEN_WORDS":                            "Forbidden words found.",
	"INVALID_INTERCHANGE_CHARACTERS":             "Invalid characters found.",
	"FIELDS_REQUIRED_FOR_CATEGORY":               "Additional fields required for this location category.",
	"STOREFRONT_REQUIRED_FOR_CATEGORY":           "Your business category requires a storefront location.",
	"ADDRESS_MISSING_REGION_CODE":                "Address is missing required region code.",
	"ADDRESS_EDIT_CHANGES_COUNTRY":               "Cannot change the country of the address.",
	"UNVERIFIED_LOCATION":                        "Verify your location first to make changes.",
	"INVALID_LOCATION_CATEGORY":                  "This category isn't allowed for this action.",
	"INVALID_URL":                                "Check the URL format and try again.",
	"URL_PROVIDER_NOT_ALLOWED":                   "This website can't be used for this action.",
	"TOO_MANY_VALUES":                            "Simplify your request. Fewer details are needed.",
	"DELETED_LINK":                               "This link no longer exists.",
	"LINK_ALREADY_EXISTS":                        "Choose a different website link.",
	"SCALABLE_DEEP_LINK_INVALID_MULTIPLICITY":    "One link per website is allowed for this action.",
	"LINK_DOES_NOT_EXIST":                        "The link you provided is invalid.",
	"SPECIAL_HOURS_SET_WITHOUT_REGULAR_HOURS":    "Special hours require regular business hours.",
	"INVALID_TIME_SCHEDULE":                      "Invalid or overlapping time schedule.",
	"INVALID_HOURS_VALUE":                        "Invalid hours format or value.",
	"OVERLAPPED_SPECIAL_HOURS":                   "Special hours cannot overlap.",
	"INCOMPATIBLE_MORE_HOURS_TYPE_FOR_CATEGORY":  "Business category doesn't support this hours type.",
	"DUPLICATE_CHILDREN_LOCATIONS":               "Duplicate children locations in relationship data.",
	"INCOMPATIBLE_SERVICE_AREA_AND_CATEGORY":     "Service area business cannot have the selected primary category.",
	"INVALID_SERVICE_AREA_PLACE_ID":              "Invalid place ID in service area.",
	"INVALID_AREA_TYPE_FOR_SERVICE_AREA":         "Invalid area type for service area.",
	"OPENING_DATE_TOO_FAR_IN_THE_FUTURE":         "Enter an opening date within a year.",
	"OPENING_DATE_MISSING_YEAR_OR_MONTH":         "Opening date must have a year or a month specified.",
	"OPENING_DATE_BEFORE_1AD":                    "Opening date cannot be before 1 AD.",
	"TOO_MANY_ENTRIES":                           "Too many entries for the field.",
	"INVALID_PHONE_NUMBER":                       "Invalid phone number.",
	"INVALID_PHONE_NUMBER_FOR_REGION":            "Invalid phone number for region.",
	"MISSING_PRIMARY_PHONE_NUMBER":               "Missing primary phone number.",
	"THROTTLED":                                  "Cannot update the field at this time.",
	"UNSUPPORTED_POINT_RADIUS_SERVICE_AREA":      "Point radius service areas are no longer supported.",
	"INVALID_CATEGORY":                           "Invalid category ID.",
	"CANNOT_REOPEN":                              "Business cannot reopen.",
	"INVALID_BUSINESS_OPENING_DATE":              "Invalid business opening date.",
	"INVALID_LATLNG":                             "Invalid latitude/longitude.",
	"PROFILE_DESCRIPTION_CONTAINS_URL":           "Business description should not contain a URL.",
	"LODGING_CANNOT_EDIT_PROFILE_DESCRIPTION":    "Lodging location's profile description can't be edited.",
	"INVALID_ADDRESS":                            "Invalid address.",
	"PARENT_CHAIN_CANNOT_BE_THE_LOCATION_ITSELF": "Parent chain cannot be the location itself.",
	"RELATION_CANNOT_BE_THE_LOCATION_ITSELF":     "Relation cannot be the location itself.",
	"MISSING_ADDRESS_COMPONENTS":                 "Missing value for address components.",
	"READ_ONLY_ADDRESS_COMPONENTS":               "Cannot edit readonly address components.",
	"STRING_TOO_LONG":                            "The text is too long.",
	"STRING_TOO_SHORT":                           "The text is too short.",
	"REQUIRED_FIELD_MISSING_VALUE":               "Missing value for a required field.",
	"ATTRIBUTE_PROVIDER_URL_NOT_ALLOWED":         "Cannot add or edit the URL for a provider.",
	"ATTRIBUTE_INVALID_ENUM_VALUE":               "Unknown value for enum attribute.",
	"ATTRIBUTE_NOT_AVAILABLE":                    "Scalable attribute not valid for this location.",
	"ATTRIBUTE_CANNOT_BE_REPEATED":               "Scalable attribute can only be specified once.",
	"ATTRIBUTE_TYPE_NOT_COMPATIBLE_FOR_CATEGORY": "Scalable attribute is not compatible with the categories set on the location.",
	"ADDRESS_REMOVAL_NOT_ALLOWED":                "Cannot remove the address for your business.",
	"AMBIGUOUS_TITLE":                            "Best name is ambiguous for a language.",
	"INVALID_CATEGORY_FOR_SAB":                   "A pure SAB cannot have specific types of gcids.",
	"RELATION_ENDPOINTS_TOO_FAR":                 "Relation endpoints are too far from each other.",
	"INVALID_SERVICE_ITEM":                       "Service item not set.",
	"SERVICE_ITEM_LABEL_NO_DISPLAY_NAME":         "Label is missing display name.",
	"SERVICE_ITEM_LABEL_DUPLICATE_DISPLAY_NAME":  "Display name is not unique for all labels.",
	"SERVICE_ITEM_LABEL_INVALID_UTF8":            "Label contains invalid UTF-8 symbols.",
	"FREE_FORM_SERVICE_ITEM_WITH_NO_CATEGORY_ID": "Missing category ID in freeFormServiceItem.",
	"FREE_FORM_SERVICE_ITEM_WITH_NO_LABEL":       "Missing label in freeFormServiceItem.",
	"SERVICE_ITEM_WITH_NO_SERVICE_TYPE_ID":       "Missing service type ID in structuredServiceItem.",
	"INVALID_LANGUAGE":                           "Invalid language code.",
	"PRICE_CURRENCY_MISSING":                     "Missing currency code.",
	"PRICE_CURRENCY_INVALID":                     "Invalid currency code.",
	"SERVICE_TYPE_ID_DUPLICATE":                  "Duplicate service type IDs within the location.",
	"PIN_DROP_REQUIRED":                          "Address cannot be located. Please provide a pin drop.",
	"STALE_DATA":                                 "One or more items were recently updated by Google. Only the owner of this business can make changes at this time.",
	"PHONE_NUMBER_EDITS_NOT_ALLOWED":             "Edits to the phone number field are not allowed.",
	"MULTIPLE_ORGANIZATIONALLY_PART_OF_RELATION": "More than one relation models the logical relation between two locations.",
}

// statusDetails explains canonical Google status strings for responses that
// carry no reason.
var statusDetails = map[string]string{
	"INVALID_ARGUMENT":    "The request contained an invalid argument.",
	"FAILED_PRECONDITION": "The location is not in a state that allows this operation.",
	"PERMISSION_DENIED":   "The account does not have permission to manage this location.",
	"NOT_FOUND":           "The requested resource was not found.",
	"ALREADY_EXISTS":      "The resource already exists.",
	"RESOURCE_EXHAUSTED":  "Quota exceeded. Try again later.",
	"UNAUTHENTICATED":     "The request was not authenticated.",
}
