package app

// ApiAccessKey is a data type for storing the API access key, used for DI.
type ApiAccessKey string
