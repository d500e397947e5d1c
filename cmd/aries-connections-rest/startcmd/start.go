/*
Copyright SecureKey Technologies Inc. All Rights Reserved.
SPDX-License-Identifier: Apache-2.0
*/

package startcmd

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/mux"
	"github.com/hyperledger/aries-framework-go/component/log"
	"github.com/hyperledger/aries-framework-go/component/storage/leveldb"
	"github.com/hyperledger/aries-framework-go/component/storageutil/mem"
	"github.com/hyperledger/aries-framework-go/spi/storage"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"github.com/hyperledger/aries-connections-go/pkg/config"
	"github.com/hyperledger/aries-connections-go/pkg/controller"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/transport"
	arieshttp "github.com/hyperledger/aries-connections-go/pkg/didcomm/transport/http"
	"github.com/hyperledger/aries-connections-go/pkg/didcomm/transport/ws"
	"github.com/hyperledger/aries-connections-go/pkg/framework/context"
)

const (
	// api host flag.
	agentHostFlagName      = "api-host"
	agentHostEnvKey        = "ARIESD_API_HOST"
	agentHostFlagShorthand = "a"
	agentHostFlagUsage     = "Host Name:Port." +
		" Alternatively, this can be set with the following environment variable: " + agentHostEnvKey

	// api token flag.
	agentTokenFlagName      = "api-token"
	agentTokenEnvKey        = "ARIESD_API_TOKEN" // nolint:gosec
	agentTokenFlagShorthand = "t"
	agentTokenFlagUsage     = "Check for bearer token in the authorization header (optional)." +
		" Alternatively, this can be set with the following environment variable: " + agentTokenEnvKey

	// config file flag.
	configFileFlagName      = "config-file"
	configFileEnvKey        = "ARIESD_CONFIG_FILE"
	configFileFlagShorthand = "f"
	configFileFlagUsage     = "YAML file with the agent configuration. Command line flags override its values." +
		" Alternatively, this can be set with the following environment variable: " + configFileEnvKey

	databaseTypeFlagName      = "database-type"
	databaseTypeEnvKey        = "ARIESD_DATABASE_TYPE"
	databaseTypeFlagShorthand = "q"
	databaseTypeFlagUsage     = "The type of database to use. Supported options: mem, leveldb. Defaults to mem." +
		" Alternatively, this can be set with the following environment variable: " + databaseTypeEnvKey

	databaseURLFlagName      = "database-url"
	databaseURLEnvKey        = "ARIESD_DATABASE_URL"
	databaseURLFlagShorthand = "v"
	databaseURLFlagUsage     = "The path of the leveldb directory. Not needed if using memstore." +
		" Alternatively, this can be set with the following environment variable: " + databaseURLEnvKey

	databaseTimeoutFlagName  = "database-timeout"
	databaseTimeoutFlagUsage = "Total time in seconds to wait until the db is available before giving up." +
		" Default: " + databaseTimeoutDefault + " seconds." +
		" Alternatively, this can be set with the following environment variable: " + databaseTimeoutEnvKey
	databaseTimeoutEnvKey  = "ARIESD_DATABASE_TIMEOUT"
	databaseTimeoutDefault = "30"

	// webhook url flag.
	agentWebhookFlagName      = "webhook-url"
	agentWebhookEnvKey        = "ARIESD_WEBHOOK_URL"
	agentWebhookFlagShorthand = "w"
	agentWebhookFlagUsage     = "URL to send notifications to." +
		" This flag can be repeated, allowing for multiple listeners." +
		" Alternatively, this can be set with the following environment variable (in CSV format): " + agentWebhookEnvKey

	// default label flag.
	agentDefaultLabelFlagName      = "agent-default-label"
	agentDefaultLabelEnvKey        = "ARIESD_DEFAULT_LABEL"
	agentDefaultLabelFlagShorthand = "l"
	agentDefaultLabelFlagUsage     = "Default Label for this agent." +
		" Alternatively, this can be set with the following environment variable: " + agentDefaultLabelEnvKey

	// log level.
	agentLogLevelFlagName  = "log-level"
	agentLogLevelEnvKey    = "ARIESD_LOG_LEVEL"
	agentLogLevelFlagUsage = "Log level." +
		" Possible values [INFO] [DEBUG] [ERROR] [WARNING] [CRITICAL] . Defaults to INFO if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentLogLevelEnvKey

	// outbound transport flag.
	agentOutboundTransportFlagName      = "outbound-transport"
	agentOutboundTransportEnvKey        = "ARIESD_OUTBOUND_TRANSPORT"
	agentOutboundTransportFlagShorthand = "o"
	agentOutboundTransportFlagUsage     = "Outbound transport type." +
		" This flag can be repeated, allowing for multiple transports." +
		" Possible values [http] [ws]. Defaults to http if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentOutboundTransportEnvKey

	agentTLSCertFileFlagName      = "tls-cert-file"
	agentTLSCertFileEnvKey        = "TLS_CERT_FILE"
	agentTLSCertFileFlagShorthand = "c"
	agentTLSCertFileFlagUsage     = "tls certificate file." +
		" Alternatively, this can be set with the following environment variable: " + agentTLSCertFileEnvKey

	agentTLSKeyFileFlagName      = "tls-key-file"
	agentTLSKeyFileEnvKey        = "TLS_KEY_FILE"
	agentTLSKeyFileFlagShorthand = "k"
	agentTLSKeyFileFlagUsage     = "tls key file." +
		" Alternatively, this can be set with the following environment variable: " + agentTLSKeyFileEnvKey

	// inbound host url flag.
	agentInboundHostFlagName      = "inbound-host"
	agentInboundHostEnvKey        = "ARIESD_INBOUND_HOST"
	agentInboundHostFlagShorthand = "i"
	agentInboundHostFlagUsage     = "Inbound Host Name:Port. This is used internally to start the inbound server." +
		" Values should be in `scheme@url` format." +
		" This flag can be repeated, allowing to configure multiple inbound transports." +
		" Alternatively, this can be set with the following environment variable: " + agentInboundHostEnvKey

	// inbound host external url flag.
	agentInboundHostExternalFlagName      = "inbound-host-external"
	agentInboundHostExternalEnvKey        = "ARIESD_INBOUND_HOST_EXTERNAL"
	agentInboundHostExternalFlagShorthand = "e"
	agentInboundHostExternalFlagUsage     = "Inbound Host External Name:Port and values should be in `scheme@url` format" +
		" This is the URL for the inbound server as seen externally and the endpoint shared with other agents." +
		" If not provided, then the internal inbound host will be used here." +
		" This flag can be repeated, allowing to configure multiple inbound transports." +
		" Alternatively, this can be set with the following environment variable: " + agentInboundHostExternalEnvKey

	// auto accept flag.
	agentAutoAcceptFlagName  = "auto-accept"
	agentAutoAcceptEnvKey    = "ARIESD_AUTO_ACCEPT"
	agentAutoAcceptFlagUsage = "Auto accept connection requests." +
		" Possible values [true] [false]. Defaults to false if not set." +
		" Alternatively, this can be set with the following environment variable: " + agentAutoAcceptEnvKey

	httpProtocol      = "http"
	websocketProtocol = "ws"

	databaseTypeMemOption     = "mem"
	databaseTypeLevelDBOption = "leveldb"
)

var (
	errMissingHost = errors.New("host not provided")
	logger         = log.New("aries-framework/connections-rest")
)

type agentParameters struct {
	server                                     server
	host, configFile, defaultLabel, logLevel   string
	tlsCertFile, tlsKeyFile                    string
	token                                      string
	webhookURLs, outboundTransports            []string
	inboundHostInternals, inboundHostExternals []string
	autoAccept                                 *bool
	dbParam                                    *dbParam
}

type dbParam struct {
	dbType  string
	path    string
	timeout uint64
}

// nolint:gochecknoglobals
var supportedStorageProviders = map[string]func(path string) (storage.Provider, error){
	databaseTypeMemOption: func(_ string) (storage.Provider, error) { // nolint:unparam
		return mem.NewProvider(), nil
	},
	databaseTypeLevelDBOption: func(path string) (storage.Provider, error) {
		p := leveldb.NewProvider(path)

		// leveldb opens lazily, probe the directory so an unavailable db is retried here.
		if _, err := p.OpenStore("connections-probe"); err != nil {
			return nil, err
		}

		return p, nil
	},
}

type server interface {
	ListenAndServe(host string, router http.Handler, certFile, keyFile string) error
}

// HTTPServer represents an actual server implementation.
type HTTPServer struct{}

// ListenAndServe starts the server using the standard Go HTTP server implementation.
func (s *HTTPServer) ListenAndServe(host string, router http.Handler, certFile, keyFile string) error {
	if certFile != "" && keyFile != "" {
		return http.ListenAndServeTLS(host, certFile, keyFile, router)
	}

	return http.ListenAndServe(host, router) //nolint:gosec
}

// Cmd returns the Cobra start command.
func Cmd(server server) (*cobra.Command, error) {
	startCmd := createStartCMD(server)

	createFlags(startCmd)

	return startCmd, nil
}

func createStartCMD(server server) *cobra.Command { //nolint: funlen
	return &cobra.Command{
		Use:   "start",
		Short: "Start an agent",
		Long:  "Start a DIDComm connections agent with its REST controller",
		RunE: func(cmd *cobra.Command, args []string) error {
			host, err := getUserSetVar(cmd, agentHostFlagName, agentHostEnvKey, false)
			if err != nil {
				return err
			}

			token, err := getUserSetVar(cmd, agentTokenFlagName, agentTokenEnvKey, true)
			if err != nil {
				return err
			}

			configFile, err := getUserSetVar(cmd, configFileFlagName, configFileEnvKey, true)
			if err != nil {
				return err
			}

			inboundHosts, err := getUserSetVars(cmd, agentInboundHostFlagName, agentInboundHostEnvKey, true)
			if err != nil {
				return err
			}

			inboundHostExternals, err := getUserSetVars(cmd, agentInboundHostExternalFlagName,
				agentInboundHostExternalEnvKey, true)
			if err != nil {
				return err
			}

			dbParam, err := getDBParam(cmd)
			if err != nil {
				return err
			}

			defaultLabel, err := getUserSetVar(cmd, agentDefaultLabelFlagName, agentDefaultLabelEnvKey, true)
			if err != nil {
				return err
			}

			autoAccept, err := getAutoAcceptValue(cmd)
			if err != nil {
				return err
			}

			webhookURLs, err := getUserSetVars(cmd, agentWebhookFlagName, agentWebhookEnvKey, true)
			if err != nil {
				return err
			}

			logLevel, err := getUserSetVar(cmd, agentLogLevelFlagName, agentLogLevelEnvKey, true)
			if err != nil {
				return err
			}

			outboundTransports, err := getUserSetVars(cmd, agentOutboundTransportFlagName,
				agentOutboundTransportEnvKey, true)
			if err != nil {
				return err
			}

			tlsCertFile, err := getUserSetVar(cmd, agentTLSCertFileFlagName, agentTLSCertFileEnvKey, true)
			if err != nil {
				return err
			}

			tlsKeyFile, err := getUserSetVar(cmd, agentTLSKeyFileFlagName, agentTLSKeyFileEnvKey, true)
			if err != nil {
				return err
			}

			parameters := &agentParameters{
				server:               server,
				host:                 host,
				token:                token,
				configFile:           configFile,
				inboundHostInternals: inboundHosts,
				inboundHostExternals: inboundHostExternals,
				dbParam:              dbParam,
				defaultLabel:         defaultLabel,
				logLevel:             logLevel,
				webhookURLs:          webhookURLs,
				outboundTransports:   outboundTransports,
				autoAccept:           autoAccept,
				tlsCertFile:          tlsCertFile,
				tlsKeyFile:           tlsKeyFile,
			}

			return startAgent(parameters)
		},
	}
}

func getDBParam(cmd *cobra.Command) (*dbParam, error) {
	dbParam := &dbParam{}

	var err error

	dbParam.dbType, err = getUserSetVar(cmd, databaseTypeFlagName, databaseTypeEnvKey, true)
	if err != nil {
		return nil, err
	}

	dbParam.path, err = getUserSetVar(cmd, databaseURLFlagName, databaseURLEnvKey, true)
	if err != nil {
		return nil, err
	}

	dbTimeout, err := getUserSetVar(cmd, databaseTimeoutFlagName, databaseTimeoutEnvKey, true)
	if err != nil {
		return nil, err
	}

	if dbTimeout == "" || dbTimeout == "0" {
		dbTimeout = databaseTimeoutDefault
	}

	t, err := strconv.Atoi(dbTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse db timeout %s: %w", dbTimeout, err)
	}

	dbParam.timeout = uint64(t)

	return dbParam, nil
}

// getAutoAcceptValue returns nil when auto accept is left to the config file.
func getAutoAcceptValue(cmd *cobra.Command) (*bool, error) {
	v, err := getUserSetVar(cmd, agentAutoAcceptFlagName, agentAutoAcceptEnvKey, true)
	if err != nil {
		return nil, err
	}

	if v == "" {
		return nil, nil
	}

	autoAccept, err := strconv.ParseBool(v)
	if err != nil {
		return nil, fmt.Errorf("invalid auto accept value %q: %w", v, err)
	}

	return &autoAccept, nil
}

func createFlags(startCmd *cobra.Command) {
	// agent host flag
	startCmd.Flags().StringP(agentHostFlagName, agentHostFlagShorthand, "", agentHostFlagUsage)

	// agent token flag
	startCmd.Flags().StringP(agentTokenFlagName, agentTokenFlagShorthand, "", agentTokenFlagUsage)

	// config file flag
	startCmd.Flags().StringP(configFileFlagName, configFileFlagShorthand, "", configFileFlagUsage)

	// inbound host flag
	startCmd.Flags().StringSliceP(agentInboundHostFlagName, agentInboundHostFlagShorthand, []string{},
		agentInboundHostFlagUsage)

	// inbound external host flag
	startCmd.Flags().StringSliceP(agentInboundHostExternalFlagName, agentInboundHostExternalFlagShorthand,
		[]string{}, agentInboundHostExternalFlagUsage)

	// db type
	startCmd.Flags().StringP(databaseTypeFlagName, databaseTypeFlagShorthand, "", databaseTypeFlagUsage)

	// db url
	startCmd.Flags().StringP(databaseURLFlagName, databaseURLFlagShorthand, "", databaseURLFlagUsage)

	// db timeout
	startCmd.Flags().StringP(databaseTimeoutFlagName, "", "", databaseTimeoutFlagUsage)

	// webhook url flag
	startCmd.Flags().StringSliceP(agentWebhookFlagName, agentWebhookFlagShorthand, []string{}, agentWebhookFlagUsage)

	// log level
	startCmd.Flags().StringP(agentLogLevelFlagName, "", "", agentLogLevelFlagUsage)

	// agent default label flag
	startCmd.Flags().StringP(agentDefaultLabelFlagName, agentDefaultLabelFlagShorthand, "",
		agentDefaultLabelFlagUsage)

	// agent outbound transport flag
	startCmd.Flags().StringSliceP(agentOutboundTransportFlagName, agentOutboundTransportFlagShorthand, []string{},
		agentOutboundTransportFlagUsage)

	// auto accept flag
	startCmd.Flags().StringP(agentAutoAcceptFlagName, "", "", agentAutoAcceptFlagUsage)

	// tls cert file
	startCmd.Flags().StringP(agentTLSCertFileFlagName,
		agentTLSCertFileFlagShorthand, "", agentTLSCertFileFlagUsage)

	// tls key file
	startCmd.Flags().StringP(agentTLSKeyFileFlagName,
		agentTLSKeyFileFlagShorthand, "", agentTLSKeyFileFlagUsage)
}

func getUserSetVar(cmd *cobra.Command, flagName, envKey string, isOptional bool) (string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetString(flagName)
		if err != nil {
			return "", fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	if isOptional || isSet {
		return value, nil
	}

	return "", errors.New("Neither " + flagName + " (command line flag) nor " + envKey +
		" (environment variable) have been set.")
}

func getUserSetVars(cmd *cobra.Command, flagName, envKey string, isOptional bool) ([]string, error) {
	if cmd.Flags().Changed(flagName) {
		value, err := cmd.Flags().GetStringSlice(flagName)
		if err != nil {
			return nil, fmt.Errorf(flagName+" flag not found: %s", err)
		}

		return value, nil
	}

	value, isSet := os.LookupEnv(envKey)

	var values []string

	if isSet {
		values = strings.Split(value, ",")
	}

	if isOptional || isSet {
		return values, nil
	}

	return nil, fmt.Errorf(" %s not set. "+
		"It must be set via either command line or environment variable", flagName)
}

// loadConfig reads the config file, or the defaults, and applies the flag overrides.
func loadConfig(parameters *agentParameters) (*config.Config, error) {
	cfg := config.Default()

	if parameters.configFile != "" {
		var err error

		cfg, err = config.Load(parameters.configFile)
		if err != nil {
			return nil, err
		}
	}

	if parameters.defaultLabel != "" {
		cfg.Connections.Label = parameters.defaultLabel
	}

	if parameters.autoAccept != nil {
		cfg.Connections.AutoAcceptConnections = *parameters.autoAccept
	}

	if parameters.logLevel != "" {
		cfg.LogLevel = parameters.logLevel
	}

	if parameters.dbParam != nil && parameters.dbParam.dbType != "" {
		cfg.Storage.Type = parameters.dbParam.dbType
	}

	if parameters.dbParam != nil && parameters.dbParam.path != "" {
		cfg.Storage.Path = parameters.dbParam.path
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func getOutboundTransports(outboundTransports []string) ([]transport.OutboundTransport, error) {
	if len(outboundTransports) == 0 {
		outboundTransports = []string{httpProtocol}
	}

	var transports []transport.OutboundTransport

	for _, outboundTransport := range outboundTransports {
		switch outboundTransport {
		case httpProtocol:
			outbound, err := arieshttp.NewOutbound(arieshttp.WithOutboundHTTPClient(&http.Client{}))
			if err != nil {
				return nil, fmt.Errorf("http outbound transport initialization failed: %w", err)
			}

			transports = append(transports, outbound)
		case websocketProtocol:
			transports = append(transports, ws.NewOutbound())
		default:
			return nil, fmt.Errorf("outbound transport [%s] not supported", outboundTransport)
		}
	}

	return transports, nil
}

// inboundTransport is started once the agent context exists, its endpoint goes into the agent config before.
type inboundTransport interface {
	Start(prov *context.Provider) error
	Endpoint() string
}

type inboundHTTP struct {
	internalAddr, externalAddr string
	certFile, keyFile          string
}

func (i *inboundHTTP) Start(prov *context.Provider) error {
	handler, err := arieshttp.NewInboundHandler(prov)
	if err != nil {
		return fmt.Errorf("http inbound transport start failed: %w", err)
	}

	srv := &http.Server{Addr: i.internalAddr, Handler: handler} //nolint:gosec

	go func() {
		var err error

		if i.certFile != "" && i.keyFile != "" {
			err = srv.ListenAndServeTLS(i.certFile, i.keyFile)
		} else {
			err = srv.ListenAndServe()
		}

		if !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("http inbound server with address [%s] failed, cause:  %s", i.internalAddr, err)
		}
	}()

	return nil
}

func (i *inboundHTTP) Endpoint() string {
	return i.externalAddr
}

type inboundWS struct {
	*ws.Inbound
}

func (i *inboundWS) Start(prov *context.Provider) error {
	return i.Inbound.Start(prov)
}

func getInboundTransports(inboundHostInternals, inboundHostExternals []string, certFile,
	keyFile string) ([]inboundTransport, error) {
	internalHost, err := getInboundSchemeToURLMap(inboundHostInternals)
	if err != nil {
		return nil, fmt.Errorf("inbound internal host : %w", err)
	}

	externalHost, err := getInboundSchemeToURLMap(inboundHostExternals)
	if err != nil {
		return nil, fmt.Errorf("inbound external host : %w", err)
	}

	var inbounds []inboundTransport

	// keep the flag order, the first endpoint is the one put in invitations
	for _, schemeHost := range inboundHostInternals {
		scheme := strings.SplitN(schemeHost, "@", 2)[0] //nolint:gomnd
		host := internalHost[scheme]

		external := externalHost[scheme]
		if external == "" {
			external = scheme + "://" + host
		}

		switch scheme {
		case httpProtocol:
			inbounds = append(inbounds, &inboundHTTP{
				internalAddr: host,
				externalAddr: external,
				certFile:     certFile,
				keyFile:      keyFile,
			})
		case websocketProtocol:
			inbound, err := ws.NewInbound(host, external)
			if err != nil {
				return nil, fmt.Errorf("ws inbound transport initialization failed: %w", err)
			}

			inbounds = append(inbounds, &inboundWS{Inbound: inbound})
		default:
			return nil, fmt.Errorf("inbound transport [%s] not supported", scheme)
		}
	}

	return inbounds, nil
}

func getInboundSchemeToURLMap(schemeHostStr []string) (map[string]string, error) {
	const validSliceLen = 2

	schemeHostMap := make(map[string]string)

	for _, schemeHost := range schemeHostStr {
		schemeHostSlice := strings.SplitN(schemeHost, "@", validSliceLen)
		if len(schemeHostSlice) != validSliceLen {
			return nil, fmt.Errorf("invalid inbound host option: Use scheme@url to pass the option")
		}

		schemeHostMap[schemeHostSlice[0]] = schemeHostSlice[1]
	}

	return schemeHostMap, nil
}

func setLogLevel(logLevel string) error {
	if logLevel != "" {
		level, err := log.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("failed to parse log level '%s' : %w", logLevel, err)
		}

		log.SetLevel("", level)

		logger.Infof("logger level set to %s", logLevel)
	}

	return nil
}

func validateAuthorizationBearerToken(w http.ResponseWriter, r *http.Request, token string) bool {
	actHdr := r.Header.Get("Authorization")
	expHdr := "Bearer " + token

	if subtle.ConstantTimeCompare([]byte(actHdr), []byte(expHdr)) != 1 {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Unauthorised.\n")) // nolint:gosec,errcheck

		return false
	}

	return true
}

func authorizationMiddleware(token string) mux.MiddlewareFunc {
	middleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if validateAuthorizationBearerToken(w, r, token) {
				next.ServeHTTP(w, r)
			}
		})
	}

	return middleware
}

func startAgent(parameters *agentParameters) error {
	if parameters.host == "" {
		return errMissingHost
	}

	cfg, err := loadConfig(parameters)
	if err != nil {
		return err
	}

	if err = setLogLevel(cfg.LogLevel); err != nil {
		return err
	}

	inbounds, err := getInboundTransports(parameters.inboundHostInternals, parameters.inboundHostExternals,
		parameters.tlsCertFile, parameters.tlsKeyFile)
	if err != nil {
		return err
	}

	ctx, err := createAgentContext(parameters, cfg, inbounds)
	if err != nil {
		return err
	}

	for _, inbound := range inbounds {
		if err = inbound.Start(ctx); err != nil {
			return err
		}

		logger.Infof("inbound transport listening, endpoint [%s]", inbound.Endpoint())
	}

	handlers := controller.GetRESTHandlers(ctx, controller.WithWebhookURLs(parameters.webhookURLs...))

	router := mux.NewRouter()

	if parameters.token != "" {
		router.Use(authorizationMiddleware(parameters.token))
	}

	for _, handler := range handlers {
		router.HandleFunc(handler.Path(), handler.Handle()).Methods(handler.Method())
	}

	logger.Infof("Starting aries connections rest on host [%s]", parameters.host)
	// start server on given port and serve using given handlers
	handler := cors.New(
		cors.Options{
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodHead},
			AllowedHeaders: []string{"Origin", "Accept", "Content-Type", "X-Requested-With", "Authorization"},
		},
	).Handler(router)

	err = parameters.server.ListenAndServe(parameters.host, handler, parameters.tlsCertFile, parameters.tlsKeyFile)
	if err != nil {
		return fmt.Errorf("failed to start aries connections rest on port [%s], cause:  %w", parameters.host, err)
	}

	return nil
}

func createAgentContext(parameters *agentParameters, cfg *config.Config,
	inbounds []inboundTransport) (*context.Provider, error) {
	storePro, err := createStoreProvider(cfg.Storage, parameters.dbParam)
	if err != nil {
		return nil, err
	}

	outbounds, err := getOutboundTransports(parameters.outboundTransports)
	if err != nil {
		return nil, fmt.Errorf("outbound transports : %w", err)
	}

	connections := cfg.Connections

	if len(inbounds) > 0 {
		connections.Endpoints = nil

		for _, inbound := range inbounds {
			connections.Endpoints = append(connections.Endpoints, inbound.Endpoint())
		}
	}

	ctx, err := context.New(
		context.WithStorageProvider(storePro),
		context.WithOutboundTransports(outbounds...),
		context.WithConnectionsConfig(&connections),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start aries connections rest on port [%s], failed to create context : %w",
			parameters.host, err)
	}

	return ctx, nil
}

func createStoreProvider(cfg config.Storage, param *dbParam) (storage.Provider, error) {
	provider, supported := supportedStorageProviders[cfg.Type]
	if !supported {
		return nil, fmt.Errorf("database type not set to a valid type." +
			" run start --help to see the available options")
	}

	timeout, err := strconv.ParseUint(databaseTimeoutDefault, 10, 64)
	if err != nil {
		return nil, err
	}

	if param != nil && param.timeout > 0 {
		timeout = param.timeout
	}

	var store storage.Provider

	err = backoff.RetryNotify(
		func() error {
			var openErr error
			store, openErr = provider(cfg.Path)
			return openErr
		},
		backoff.WithMaxRetries(backoff.NewConstantBackOff(time.Second), timeout),
		func(retryErr error, t time.Duration) {
			logger.Warnf(
				"failed to connect to storage, will sleep for %s before trying again : %s\n",
				t, retryErr)
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to storage at %s : %w", cfg.Path, err)
	}

	return store, nil
}
