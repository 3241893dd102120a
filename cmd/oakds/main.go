// Command oakds is a thin operator CLI over the content-addressable data
// store backend: server-mediated reads and writes, metadata records, and the
// direct-transfer (presigned URI) workflow.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/andreeastroe96/jackrabbit-oak/internal/datastore"
	infraS3 "github.com/andreeastroe96/jackrabbit-oak/internal/infra/datastore/s3"
)

type app struct {
	ctx     context.Context
	backend datastore.Backend
	log     *zap.Logger
}

func (a *app) ensureBackend() error {
	if a.backend != nil {
		return nil
	}
	log, err := buildLogger(viper.GetBool("verbose"))
	if err != nil {
		return err
	}
	container := viper.GetString("container")
	if container == "" {
		return errors.New("--container is required")
	}
	cfg := infraS3.ParseConfig(map[string]string{
		infraS3.PropConnectionString:         viper.GetString("connection_string"),
		infraS3.PropAccountName:              viper.GetString("account_name"),
		infraS3.PropAccountKey:               viper.GetString("account_key"),
		infraS3.PropSessionToken:             viper.GetString("session_token"),
		infraS3.PropRoleARN:                  viper.GetString("role_arn"),
		infraS3.PropEndpoint:                 viper.GetString("endpoint"),
		infraS3.PropRegion:                   viper.GetString("region"),
		infraS3.PropContainer:                container,
		infraS3.PropPathStyle:                viper.GetString("path_style"),
		infraS3.PropCreateContainer:          viper.GetString("create_container"),
		infraS3.PropConcurrentRequests:       viper.GetString("concurrent_requests"),
		infraS3.PropDownloadURIExpirySeconds: viper.GetString("download_expiry_seconds"),
		infraS3.PropUploadURIExpirySeconds:   viper.GetString("upload_expiry_seconds"),
		infraS3.PropDownloadURICacheMaxSize:  viper.GetString("download_cache_max_size"),
		infraS3.PropDownloadURIVerifyExists:  viper.GetString("download_verify_exists"),
		infraS3.PropUploadDomainOverride:     viper.GetString("upload_domain_override"),
		infraS3.PropDownloadDomainOverride:   viper.GetString("download_domain_override"),
	})
	cfg.Logger = log

	ctx := context.Background()
	backend, err := datastore.NewS3(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init backend: %w", err)
	}
	a.ctx = ctx
	a.backend = backend
	a.log = log
	return nil
}

func (a *app) close() {
	if a.backend != nil {
		_ = a.backend.Close()
	}
	if a.log != nil {
		_ = a.log.Sync()
	}
}

func buildLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	return cfg.Build()
}

var (
	cfgFile     string
	application = &app{}
	rootCmd     = &cobra.Command{
		Use:           "oakds",
		Short:         "content-addressable data store CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return application.ensureBackend()
		},
	}
)

func init() {
	cobra.OnInitialize(initConfig)
	initRootFlags()
	initCommands()
}

func main() {
	defer application.close()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("oakds")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "oakds"))
		}
	}
	viper.SetEnvPrefix("OAKDS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	if err := viper.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if !errors.As(err, &nf) {
			fmt.Fprintf(os.Stderr, "read config: %v\n", err)
		}
	}
}

func bindConfig(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		panic(err)
	}
}

func initRootFlags() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (TOML or YAML)")

	rootCmd.PersistentFlags().Bool("verbose", false, "enable debug logging")
	rootCmd.PersistentFlags().String("container", "", "storage container (bucket) name")
	rootCmd.PersistentFlags().String("endpoint", "", "custom storage endpoint")
	rootCmd.PersistentFlags().String("region", "", "storage region")
	rootCmd.PersistentFlags().Bool("path-style", false, "use path-style addressing")
	rootCmd.PersistentFlags().Bool("create-container", true, "create the container if missing")
	rootCmd.PersistentFlags().Int("concurrent-requests", 2, "concurrent requests per upload")

	rootCmd.PersistentFlags().String("connection-string", "", "connection string of 'key=value;' pairs")
	rootCmd.PersistentFlags().String("account-name", "", "storage account (access key id)")
	rootCmd.PersistentFlags().String("account-key", "", "storage account secret key")
	rootCmd.PersistentFlags().String("session-token", "", "session token for temporary credentials")
	rootCmd.PersistentFlags().String("role-arn", "", "role to assume for credential delegation")

	rootCmd.PersistentFlags().Int("download-expiry-seconds", 0, "presigned download URI lifetime (0 disables)")
	rootCmd.PersistentFlags().Int("upload-expiry-seconds", 0, "presigned upload URI lifetime (0 disables)")
	rootCmd.PersistentFlags().Int("download-cache-max-size", 0, "presigned download URI cache entries (0 disables)")
	rootCmd.PersistentFlags().Bool("download-verify-exists", true, "verify existence before minting download URIs")
	rootCmd.PersistentFlags().String("upload-domain-override", "", "domain substituted into upload URIs")
	rootCmd.PersistentFlags().String("download-domain-override", "", "domain substituted into download URIs")

	for _, name := range []string{
		"verbose", "container", "endpoint", "region", "path-style",
		"create-container", "concurrent-requests", "connection-string",
		"account-name", "account-key", "session-token", "role-arn",
		"download-expiry-seconds", "upload-expiry-seconds",
		"download-cache-max-size", "download-verify-exists",
		"upload-domain-override", "download-domain-override",
	} {
		bindConfig(strings.ReplaceAll(name, "-", "_"), rootCmd.PersistentFlags().Lookup(name))
	}
}

func initCommands() {
	rootCmd.AddCommand(
		newPutCmd(),
		newGetCmd(),
		newExistsCmd(),
		newDeleteCmd(),
		newRecordCmd(),
		newListCmd(),
		newMetaPutCmd(),
		newMetaGetCmd(),
		newMetaListCmd(),
		newMetaDeleteCmd(),
		newPresignCmd(),
		newUploadInitCmd(),
		newUploadCompleteCmd(),
	)
}

func backendContext() (context.Context, datastore.Backend) {
	return application.ctx, application.backend
}

func directAccess() (datastore.DirectAccess, error) {
	da, ok := application.backend.(datastore.DirectAccess)
	if !ok {
		return nil, errors.New("backend does not support direct transfers")
	}
	return da, nil
}

func newPutCmd() *cobra.Command {
	var length int64
	cmd := &cobra.Command{
		Use:   "put <identifier>",
		Short: "Write stdin to the store under the given identifier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, backend := backendContext()
			return backend.Write(ctx, datastore.Identifier(args[0]), length, os.Stdin)
		},
	}
	cmd.Flags().Int64Var(&length, "length", 0, "expected blob length in bytes")
	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <identifier>",
		Short: "Print the blob contents to stdout",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, backend := backendContext()
			r, err := backend.Read(ctx, datastore.Identifier(args[0]))
			if err != nil {
				return err
			}
			defer r.Close()
			_, err = io.Copy(os.Stdout, r)
			return err
		},
	}
}

func newExistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exists <identifier>",
		Short: "Report whether the blob exists (exit status 1 when absent)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, backend := backendContext()
			ok, err := backend.Exists(ctx, datastore.Identifier(args[0]))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("absent")
				os.Exit(1)
			}
			fmt.Println("present")
			return nil
		},
	}
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <identifier>",
		Short: "Delete the blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, backend := backendContext()
			deleted, err := backend.DeleteRecord(ctx, datastore.Identifier(args[0]))
			if err != nil {
				return err
			}
			if deleted {
				fmt.Println("deleted")
			} else {
				fmt.Println("not found")
			}
			return nil
		},
	}
}

func newRecordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "record <identifier>",
		Short: "Print the blob's record (length and last-modified time)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, backend := backendContext()
			rec, err := backend.GetRecord(ctx, datastore.Identifier(args[0]))
			if err != nil {
				return err
			}
			printRecord(rec)
			return nil
		},
	}
}

func newListCmd() *cobra.Command {
	var withRecords bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every blob in the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, backend := backendContext()
			if withRecords {
				it, err := backend.GetAllRecords(ctx)
				if err != nil {
					return err
				}
				for {
					rec, err := it.Next(ctx)
					if errors.Is(err, io.EOF) {
						return nil
					}
					if err != nil {
						return err
					}
					printRecord(rec)
				}
			}
			it, err := backend.GetAllIdentifiers(ctx)
			if err != nil {
				return err
			}
			for {
				id, err := it.Next(ctx)
				if errors.Is(err, io.EOF) {
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Println(id)
			}
		},
	}
	cmd.Flags().BoolVar(&withRecords, "records", false, "include length and last-modified time")
	return cmd
}

func newMetaPutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meta-put <name>",
		Short: "Write stdin as a metadata record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, backend := backendContext()
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				return err
			}
			return backend.AddMetadataRecord(ctx, args[0], data)
		},
	}
}

func newMetaGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meta-get <name>",
		Short: "Print a metadata record's descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, backend := backendContext()
			rec, err := backend.GetMetadataRecord(ctx, args[0])
			if err != nil {
				return err
			}
			printRecord(rec)
			return nil
		},
	}
}

func newMetaListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "meta-list [prefix]",
		Short: "List metadata records, optionally under a name prefix",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, backend := backendContext()
			prefix := ""
			if len(args) == 1 {
				prefix = args[0]
			}
			for _, rec := range backend.GetAllMetadataRecords(ctx, prefix) {
				printRecord(rec)
			}
			return nil
		},
	}
}

func newMetaDeleteCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "meta-delete <name>",
		Short: "Delete a metadata record, or all records under a prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, backend := backendContext()
			if all {
				backend.DeleteAllMetadataRecords(ctx, args[0])
				return nil
			}
			if backend.DeleteMetadataRecord(ctx, args[0]) {
				fmt.Println("deleted")
			} else {
				fmt.Println("not found")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "treat the argument as a prefix and delete every match")
	return cmd
}

func newPresignCmd() *cobra.Command {
	var contentType, contentDisposition string
	var ignoreOverride bool
	cmd := &cobra.Command{
		Use:   "presign <identifier>",
		Short: "Mint a presigned download URI for the blob",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			da, err := directAccess()
			if err != nil {
				return err
			}
			uri, err := da.CreateDownloadURI(application.ctx, datastore.Identifier(args[0]), datastore.DownloadOptions{
				ContentTypeHeader:        contentType,
				ContentDispositionHeader: contentDisposition,
				IgnoreDomainOverride:     ignoreOverride,
			})
			if err != nil {
				return err
			}
			if uri == "" {
				return errors.New("presigned downloads unavailable (disabled or blob missing)")
			}
			fmt.Println(uri)
			return nil
		},
	}
	cmd.Flags().StringVar(&contentType, "content-type", "", "Content-Type the URI should force")
	cmd.Flags().StringVar(&contentDisposition, "content-disposition", "", "Content-Disposition the URI should force")
	cmd.Flags().BoolVar(&ignoreOverride, "ignore-domain-override", false, "bypass any configured domain override")
	return cmd
}

func newUploadInitCmd() *cobra.Command {
	var size int64
	var maxURIs int
	var ignoreOverride bool
	cmd := &cobra.Command{
		Use:   "upload-init",
		Short: "Initiate a direct multi-part upload",
		RunE: func(cmd *cobra.Command, args []string) error {
			da, err := directAccess()
			if err != nil {
				return err
			}
			up, err := da.InitiateUpload(application.ctx, size, maxURIs, datastore.UploadOptions{
				IgnoreDomainOverride: ignoreOverride,
			})
			if err != nil {
				return err
			}
			if up == nil {
				return errors.New("direct uploads unavailable")
			}
			fmt.Printf("token\t%s\n", up.Token)
			fmt.Printf("minPartSize\t%d\n", up.MinPartSize)
			fmt.Printf("maxPartSize\t%d\n", up.MaxPartSize)
			for i, uri := range up.PartURIs {
				fmt.Printf("part\t%d\t%s\n", i+1, uri)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&size, "size", 0, "maximum total upload size in bytes")
	cmd.Flags().IntVar(&maxURIs, "max-uris", -1, "maximum part URIs the client can use (-1 for no preference)")
	cmd.Flags().BoolVar(&ignoreOverride, "ignore-domain-override", false, "bypass any configured domain override")
	return cmd
}

func newUploadCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload-complete <token>",
		Short: "Finalize a direct upload and print the resulting record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			da, err := directAccess()
			if err != nil {
				return err
			}
			rec, err := da.CompleteUpload(application.ctx, args[0])
			if err != nil {
				return err
			}
			printRecord(rec)
			return nil
		},
	}
}

func printRecord(rec datastore.Record) {
	name := string(rec.Identifier)
	if rec.Meta {
		name = "META/" + name
	}
	fmt.Printf("%s\t%d\t%s\n", name, rec.Length, rec.LastModified.Format("2006-01-02T15:04:05.000Z07:00"))
}
